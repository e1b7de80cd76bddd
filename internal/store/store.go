// Package store provides the document fetch collaborator: a key/value
// lookup of linked-data documents by public id or storage key. ACL is never
// applied here — the read path's own evaluator is the ACL layer.
package store

import (
	"context"
	"errors"

	"lectern/api/internal/doc"
)

// ErrNotFound is returned when no document exists under the given id.
var ErrNotFound = errors.New("document not found")

// Fetcher is the lookup shape the core consumes.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (doc.Doc, error)
}

// FetchAll resolves a batch of ids against f. Ids that no longer resolve
// are collected in missing rather than failing the batch; any other fetch
// error aborts it.
func FetchAll(ctx context.Context, f Fetcher, ids []string) (found []doc.Doc, missing []string, err error) {
	found = make([]doc.Doc, 0, len(ids))
	for _, id := range ids {
		d, err := f.Fetch(ctx, id)
		if errors.Is(err, ErrNotFound) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		found = append(found, d)
	}
	return found, missing, nil
}
