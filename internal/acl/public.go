package acl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lectern/api/internal/doc"
	"lectern/api/internal/scope"
	"lectern/api/internal/store"
)

// AudienceChecker answers the time-bounded public-audience predicate.
type AudienceChecker interface {
	HasPublicAudience(d doc.Doc, now time.Time) bool
}

// Checker determines whether a document is publicly readable by walking its
// scope chain. Visibility only narrows along ancestry: an action inside a
// private graph is never public, whatever its own audience says.
type Checker struct {
	Store    store.Fetcher
	Audience AudienceChecker
}

// IsPublic reports public availability of a document or reference at now.
// Fetches within one call share a cache; the cache dies with the call.
func (c *Checker) IsPublic(ctx context.Context, ref any, now time.Time) (bool, error) {
	return c.isPublic(ctx, ref, now, map[string]doc.Doc{}, 0)
}

func (c *Checker) isPublic(ctx context.Context, ref any, now time.Time, cache map[string]doc.Doc, depth int) (bool, error) {
	if depth > 8 {
		return false, fmt.Errorf("acl: ancestry deeper than 8 at %q: %w", doc.NodeID(ref), doc.ErrIntegrity)
	}

	d, err := c.resolve(ctx, ref, cache)
	if err != nil {
		return false, err
	}

	switch kindOf(d) {
	case doc.KindUser, doc.KindProfile, doc.KindOrg, doc.KindService:
		return true, nil

	case doc.KindJournal:
		return c.Audience.HasPublicAudience(d, now), nil

	case doc.KindAction:
		if !c.Audience.HasPublicAudience(d, now) {
			return false, nil
		}
		scopeID, err := scope.Resolve(d)
		if err != nil {
			return false, err
		}
		if strings.HasPrefix(scopeID, "graph:") {
			return c.isPublic(ctx, scopeID, now, cache, depth+1)
		}
		return true, nil

	case doc.KindWorkflow, doc.KindIssue:
		// No intrinsic audience: public only through a public journal.
		scopeID, err := scope.Resolve(d)
		if err != nil {
			return false, err
		}
		if !strings.HasPrefix(scopeID, "journal:") {
			return false, nil
		}
		return c.isPublic(ctx, scopeID, now, cache, depth+1)

	case doc.KindContact, doc.KindAudience, doc.KindRole, doc.KindNode:
		embedder, ok := d["isNodeOf"]
		if !ok || embedder == nil {
			return false, nil
		}
		return c.isPublic(ctx, embedder, now, cache, depth+1)

	case doc.KindGraph, doc.KindRelease:
		if !c.Audience.HasPublicAudience(d, now) {
			return false, nil
		}
		journalID := d.GetString("isPartOf")
		if journalID == "" {
			return true, nil
		}
		journal, err := c.fetch(ctx, journalID, cache)
		if errors.Is(err, store.ErrNotFound) {
			// A graph must never reference a nonexistent journal.
			return false, fmt.Errorf("acl: graph %s references missing journal %s: %w",
				d.ID(), journalID, doc.ErrIntegrity)
		}
		if err != nil {
			return false, err
		}
		return c.isPublic(ctx, journal, now, cache, depth+1)
	}

	return false, nil
}

// resolve turns a reference into a document. Bare references — an id
// string, or a node carrying nothing beyond "@id" and "@type" — are
// fetched; anything with substance (including a storage key) is used
// as-is.
func (c *Checker) resolve(ctx context.Context, ref any, cache map[string]doc.Doc) (doc.Doc, error) {
	if d, ok := doc.AsDoc(ref); ok && !bareRef(d) {
		return d, nil
	}
	id := doc.NodeID(ref)
	if id == "" {
		return nil, nil
	}
	return c.fetch(ctx, id, cache)
}

func bareRef(d doc.Doc) bool {
	for k := range d {
		switch k {
		case "@id", "@type":
		default:
			return false
		}
	}
	return d.ID() != ""
}

func (c *Checker) fetch(ctx context.Context, id string, cache map[string]doc.Doc) (doc.Doc, error) {
	if d, ok := cache[id]; ok {
		return d, nil
	}
	d, err := c.Store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = d
	return d, nil
}

// kindOf decodes the dispatch kind from the storage key when present, then
// from the id namespace.
func kindOf(d doc.Doc) doc.Kind {
	if d == nil {
		return doc.KindUnknown
	}
	if key, ok := doc.ParseKey(d.Key()); ok {
		if k := key.Kind(); k != doc.KindUnknown {
			return k
		}
	}
	if k := doc.KindOfID(d.ID()); k != doc.KindUnknown {
		return k
	}
	if strings.HasSuffix(d.Type(), "Action") {
		return doc.KindAction
	}
	return doc.KindUnknown
}
