package search

import (
	"context"
	"log"

	"lectern/api/internal/doc"
	"lectern/api/internal/store"
)

// Service hydrates Meilisearch hits into a SearchResultList document. A nil
// Meili client disables search entirely.
type Service struct {
	meili *Meili
	store store.Fetcher
}

func NewService(meili *Meili, docs store.Fetcher) *Service {
	return &Service{meili: meili, store: docs}
}

// Enabled reports whether a search backend is configured and reachable.
func (s *Service) Enabled() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search runs the query and fetches each hit's full document. Hits whose
// documents have disappeared since indexing are skipped. The returned list
// still needs ACL filtering and blinding.
func (s *Service) Search(ctx context.Context, q Query) (doc.Doc, error) {
	if !s.Enabled() {
		return emptyResultList(q.Text), nil
	}

	ids, total, err := s.meili.Search(q)
	if err != nil {
		return nil, err
	}

	docs, missing, err := store.FetchAll(ctx, s.store, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		log.Printf("search: stale index entry %s", id)
	}

	items := make([]any, 0, len(docs))
	for _, d := range docs {
		items = append(items, map[string]any{
			"@type": "ListItem",
			"item":  map[string]any(d),
		})
	}

	return doc.Doc{
		"@type":           "SearchResultList",
		"query":           q.Text,
		"numberOfItems":   total,
		"itemListElement": items,
	}, nil
}

func emptyResultList(query string) doc.Doc {
	return doc.Doc{
		"@type":           "SearchResultList",
		"query":           query,
		"numberOfItems":   0,
		"itemListElement": []any{},
	}
}
