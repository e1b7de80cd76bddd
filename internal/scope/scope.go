// Package scope resolves any document or reference to its owning aggregate
// root: a submission graph, a journal, or an organization. Resolution is a
// pure function of the input value — it never fetches.
package scope

import (
	"fmt"
	"strings"

	"lectern/api/internal/doc"
)

// Embedder chains are acyclic by construction; the depth cap is a guard
// against corrupted data, and tripping it is an integrity error.
const maxDepth = 8

// Options controls resolution details.
type Options struct {
	// PreserveVersion keeps the "?version=..." suffix on root-scope ids.
	PreserveVersion bool
}

// Resolve returns the scope id owning ref, or "" when nothing resolves.
func Resolve(ref any) (string, error) {
	return ResolveOpt(ref, Options{})
}

// ResolveOpt is Resolve with explicit options.
func ResolveOpt(ref any, opt Options) (string, error) {
	return resolve(ref, opt, 0)
}

func resolve(ref any, opt Options, depth int) (string, error) {
	if depth > maxDepth {
		return "", fmt.Errorf("scope: embedder chain deeper than %d: %w", maxDepth, doc.ErrIntegrity)
	}

	d, isDoc := doc.AsDoc(ref)
	id := doc.NodeID(ref)

	// Fast path: a storage key encodes the scope directly.
	if isDoc {
		if key, ok := doc.ParseKey(d.Key()); ok {
			return key.ScopeID, nil
		}
	}
	if key, ok := doc.ParseKey(id); ok {
		return key.ScopeID, nil
	}

	kind := doc.KindOfID(id)

	if kind.IsRootScope() {
		if opt.PreserveVersion {
			return id, nil
		}
		return doc.StripVersion(id), nil
	}

	if kind == doc.KindIssue {
		if isDoc {
			if parent, ok := d["isPartOf"]; ok && parent != nil {
				return resolve(parent, opt, depth+1)
			}
		}
		return journalOfIssue(id), nil
	}

	if kind.IsEmbeddable() {
		if isDoc {
			if embedder, ok := d["isNodeOf"]; ok && embedder != nil {
				return resolve(embedder, opt, depth+1)
			}
		}
		// Missing embedder is a caller error; the raw id is the best
		// fallback available.
		return id, nil
	}

	if isDoc {
		if work, ok := d["encodesCreativeWork"]; ok && work != nil {
			return resolve(work, opt, depth+1)
		}
	}

	return id, nil
}

// journalOfIssue synthesizes the owning journal id from an issue id's
// namespace: "issue:joghl/4" -> "journal:joghl".
func journalOfIssue(id string) string {
	local := doc.Unprefix(id)
	if i := strings.IndexByte(local, '/'); i >= 0 {
		local = local[:i]
	}
	if local == "" {
		return id
	}
	return "journal:" + local
}
