package acl

import (
	"context"
	"errors"
	"testing"
	"time"

	"lectern/api/internal/doc"
	"lectern/api/internal/store"
)

type fakeFetcher struct {
	docs map[string]doc.Doc
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string) (doc.Doc, error) {
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return nil, store.ErrNotFound
}

// markedAudience treats documents carrying "open": true as publicly
// disclosed.
type markedAudience struct{}

func (markedAudience) HasPublicAudience(d doc.Doc, now time.Time) bool {
	open, _ := d["open"].(bool)
	return open
}

func newChecker(docs map[string]doc.Doc) *Checker {
	return &Checker{Store: &fakeFetcher{docs: docs}, Audience: markedAudience{}}
}

func TestIsPublic(t *testing.T) {
	now := time.Now()
	docs := map[string]doc.Doc{
		"journal:open":   {"@id": "journal:open", "_id": "journal:open::journal::", "open": true},
		"journal:closed": {"@id": "journal:closed", "_id": "journal:closed::journal::"},
		"graph:pub": {
			"@id": "graph:pub", "_id": "graph:pub::graph::latest",
			"isPartOf": "journal:open", "open": true,
		},
		"graph:quiet": {
			"@id": "graph:quiet", "_id": "graph:quiet::graph::latest",
			"isPartOf": "journal:open",
		},
		"graph:orphanjournal": {
			"@id": "graph:orphanjournal", "_id": "graph:orphanjournal::graph::latest",
			"isPartOf": "journal:gone", "open": true,
		},
		"graph:standalone": {
			"@id": "graph:standalone", "_id": "graph:standalone::graph::latest",
			"open": true,
		},
		"graph:buried": {
			"@id": "graph:buried", "_id": "graph:buried::graph::latest",
			"isPartOf": "journal:closed", "open": true,
		},
	}
	c := newChecker(docs)

	cases := []struct {
		name string
		ref  any
		want bool
	}{
		{name: "user is always public", ref: doc.Doc{"@id": "user:alice", "name": "Alice"}, want: true},
		{name: "org is always public", ref: doc.Doc{"@id": "org:press", "name": "Press"}, want: true},
		{name: "open journal", ref: "journal:open", want: true},
		{name: "closed journal", ref: "journal:closed", want: false},
		{name: "disclosed graph under open journal", ref: "graph:pub", want: true},
		{name: "undisclosed graph under open journal", ref: "graph:quiet", want: false},
		{name: "disclosed graph without journal", ref: "graph:standalone", want: true},
		{
			// Visibility narrows along ancestry: the graph's own
			// disclosure cannot outrank a closed journal.
			name: "disclosed graph under closed journal",
			ref:  "graph:buried",
			want: false,
		},
		{
			name: "workflow of an open journal",
			ref:  doc.Doc{"@id": "workflow:w1", "_id": "journal:open::workflow::"},
			want: true,
		},
		{
			name: "workflow of a closed journal",
			ref:  doc.Doc{"@id": "workflow:w2", "_id": "journal:closed::workflow::"},
			want: false,
		},
		{
			name: "issue inherits its journal",
			ref:  doc.Doc{"@id": "issue:open/3", "_id": "journal:open::issue::3"},
			want: true,
		},
		{
			name: "disclosed action inside public graph",
			ref: doc.Doc{
				"@id": "action:a1", "_id": "graph:pub::action::completed",
				"@type": "ReviewAction", "open": true,
			},
			want: true,
		},
		{
			name: "disclosed action inside private graph",
			ref: doc.Doc{
				"@id": "action:a2", "_id": "graph:quiet::action::completed",
				"@type": "ReviewAction", "open": true,
			},
			want: false,
		},
		{
			name: "undisclosed action inside public graph",
			ref: doc.Doc{
				"@id": "action:a3", "_id": "graph:pub::action::completed",
				"@type": "ReviewAction",
			},
			want: false,
		},
		{
			name: "role delegates to its embedder",
			ref:  doc.Doc{"@id": "role:r1", "roleName": "author", "isNodeOf": "graph:pub"},
			want: true,
		},
		{
			name: "role without embedder",
			ref:  doc.Doc{"@id": "role:orphan", "roleName": "author"},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.IsPublic(context.Background(), tc.ref, now)
			if err != nil {
				t.Fatalf("IsPublic() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("IsPublic() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsPublicFetchesBareReferences(t *testing.T) {
	// A node holding only "@id"/"@type" is a reference, not the document:
	// its visibility comes from the stored version, not from the fields
	// the reference happens to omit.
	now := time.Now()
	docs := map[string]doc.Doc{
		"journal:open":   {"@id": "journal:open", "_id": "journal:open::journal::", "open": true},
		"journal:closed": {"@id": "journal:closed", "_id": "journal:closed::journal::"},
		"graph:pub": {
			"@id": "graph:pub", "_id": "graph:pub::graph::latest",
			"isPartOf": "journal:open", "open": true,
		},
	}
	c := newChecker(docs)

	cases := []struct {
		name string
		ref  any
		want bool
	}{
		{name: "open journal by reference", ref: doc.Doc{"@id": "journal:open", "@type": "Periodical"}, want: true},
		{name: "closed journal by reference", ref: doc.Doc{"@id": "journal:closed", "@type": "Periodical"}, want: false},
		{name: "disclosed graph by reference", ref: doc.Doc{"@id": "graph:pub", "@type": "Graph"}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.IsPublic(context.Background(), tc.ref, now)
			if err != nil {
				t.Fatalf("IsPublic() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("IsPublic() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsPublicMissingJournalIsIntegrityError(t *testing.T) {
	c := newChecker(map[string]doc.Doc{
		"graph:orphanjournal": {
			"@id": "graph:orphanjournal", "_id": "graph:orphanjournal::graph::latest",
			"isPartOf": "journal:gone", "open": true,
		},
	})
	_, err := c.IsPublic(context.Background(), "graph:orphanjournal", time.Now())
	if !errors.Is(err, doc.ErrIntegrity) {
		t.Fatalf("IsPublic() error = %v, want integrity violation", err)
	}
}

func TestIsPublicNeverWidens(t *testing.T) {
	// Whatever flags a nested document carries, it cannot be more
	// visible than the closed scope that owns it.
	docs := map[string]doc.Doc{
		"journal:closed": {"@id": "journal:closed", "_id": "journal:closed::journal::"},
		"graph:g": {
			"@id": "graph:g", "_id": "graph:g::graph::latest",
			"isPartOf": "journal:closed", "open": true,
		},
	}
	c := newChecker(docs)
	refs := []any{
		"graph:g",
		doc.Doc{"@id": "action:x", "_id": "graph:g::action::active", "@type": "AssessAction", "open": true},
		doc.Doc{"@id": "role:x", "isNodeOf": "graph:g"},
	}
	for _, ref := range refs {
		got, err := c.IsPublic(context.Background(), ref, time.Now())
		if err != nil {
			t.Fatalf("IsPublic(%v) error = %v", ref, err)
		}
		if got {
			t.Fatalf("IsPublic(%v) = true inside a closed journal", ref)
		}
	}
}
