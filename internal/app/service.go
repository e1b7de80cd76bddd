// Package app wires the read path: fetch, ACL check, anonymize. Denied
// documents surface as not-found so callers cannot distinguish "absent"
// from "blocked".
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lectern/api/internal/acl"
	"lectern/api/internal/blind"
	"lectern/api/internal/config"
	"lectern/api/internal/doc"
	"lectern/api/internal/search"
	"lectern/api/internal/store"
	"lectern/api/internal/visibility"
)

// Viewer is the authenticated caller of a read request.
type Viewer struct {
	ID    string
	Name  string
	Email string
	Admin bool
}

// Doc renders the viewer as the identity document the core layers consume.
func (v Viewer) Doc() doc.Doc {
	if v.ID == "" && v.Email == "" {
		return doc.Doc{}
	}
	d := doc.Doc{"@type": "Person"}
	if v.ID != "" {
		d["@id"] = v.ID
	}
	if v.Name != "" {
		d["name"] = v.Name
	}
	if v.Email != "" {
		d["email"] = v.Email
	}
	return d
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Service struct {
	cfg    config.Config
	docs   store.Fetcher
	public *acl.Checker
	engine *blind.Engine
	search *search.Service
	health pinger
}

func New(cfg config.Config, docs store.Fetcher, searchSvc *search.Service) *Service {
	resolver := visibility.Resolver{}
	s := &Service{
		cfg:    cfg,
		docs:   docs,
		public: &acl.Checker{Store: docs, Audience: resolver},
		engine: &blind.Engine{Store: docs, Oracle: resolver},
		search: searchSvc,
	}
	if p, ok := docs.(pinger); ok {
		s.health = p
	}
	return s
}

// GetDocument runs the full read pipeline for one document id.
func (s *Service) GetDocument(ctx context.Context, id string, viewer Viewer) (doc.Doc, error) {
	if strings.HasPrefix(id, blind.Prefix) {
		// Pseudonyms are one-way; asking storage to resolve one is a
		// caller mistake, not a missing document.
		return nil, badRequest("Anonymous identities cannot be resolved")
	}

	d, err := s.docs.Fetch(ctx, id)
	if err != nil {
		return nil, toDomain(err)
	}

	now := time.Now()
	checked, err := s.checkRead(ctx, d, viewer, now)
	if err != nil {
		return nil, toDomain(err)
	}
	if checked == nil {
		return nil, notFound("Document not found")
	}

	blinded, err := s.engine.Anonymize(ctx, checked, blind.Options{
		Viewer: viewer.Doc(),
		Now:    now,
	})
	if err != nil {
		return nil, toDomain(err)
	}
	out, ok := doc.AsDoc(blinded)
	if !ok {
		return nil, toDomain(fmt.Errorf("anonymize returned non-document for %s", id))
	}
	return out, nil
}

// Search runs a query, drops hits the viewer may not read, and blinds the
// surviving result list.
func (s *Service) Search(ctx context.Context, q search.Query, viewer Viewer) (doc.Doc, error) {
	if s.search == nil {
		return nil, &DomainError{Status: 503, Code: "SEARCH_UNAVAILABLE", Message: "Search is not configured"}
	}
	list, err := s.search.Search(ctx, q)
	if err != nil {
		return nil, toDomain(err)
	}

	now := time.Now()
	raw := list["itemListElement"]
	kept := make([]any, 0)
	for _, v := range doc.Values(raw) {
		entry, ok := doc.AsDoc(v)
		if !ok {
			continue
		}
		item, ok := entry.Node("item")
		if !ok {
			continue
		}
		checked, err := s.checkRead(ctx, item, viewer, now)
		if err != nil {
			return nil, toDomain(err)
		}
		if checked == nil {
			continue
		}
		kept = append(kept, map[string]any(entry.With(map[string]any{"item": map[string]any(checked)})))
	}
	list = list.With(map[string]any{
		"itemListElement": kept,
		"numberOfItems":   len(kept),
	})

	blinded, err := s.engine.Anonymize(ctx, list, blind.Options{Viewer: viewer.Doc(), Now: now})
	if err != nil {
		return nil, toDomain(err)
	}
	out, _ := doc.AsDoc(blinded)
	return out, nil
}

// checkRead evaluates public availability and the read ACL for one
// document. A nil result with nil error is a denial.
func (s *Service) checkRead(ctx context.Context, d doc.Doc, viewer Viewer, now time.Time) (doc.Doc, error) {
	isPublic, err := s.public.IsPublic(ctx, d, now)
	if err != nil {
		return nil, err
	}

	checked, ok := acl.Check(d, acl.Context{
		Capability: newScopeCapability(ctx, s.docs, viewer.Doc(), now),
		IsPublic:   isPublic,
		IsAdmin:    viewer.Admin,
	})
	if !ok {
		return nil, nil
	}
	return checked, nil
}

// Ping reports backing-store health.
func (s *Service) Ping(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	return s.health.Ping(ctx)
}
