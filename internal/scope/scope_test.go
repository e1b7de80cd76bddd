package scope

import (
	"errors"
	"testing"

	"lectern/api/internal/doc"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		ref  any
		want string
	}{
		{
			name: "storage key on document",
			ref:  doc.Doc{"@id": "action:a1", "_id": "graph:demo::action::active"},
			want: "graph:demo",
		},
		{
			name: "storage key as reference",
			ref:  "graph:demo::release::1.0.0",
			want: "graph:demo",
		},
		{
			name: "graph id strips version",
			ref:  "graph:demo?version=1.2.0",
			want: "graph:demo",
		},
		{
			name: "journal is its own scope",
			ref:  "journal:jats",
			want: "journal:jats",
		},
		{
			name: "org is its own scope",
			ref:  doc.Doc{"@id": "org:press"},
			want: "org:press",
		},
		{
			name: "issue follows isPartOf",
			ref:  doc.Doc{"@id": "issue:jats/4", "isPartOf": map[string]any{"@id": "journal:jats"}},
			want: "journal:jats",
		},
		{
			name: "bare issue id synthesizes its journal",
			ref:  "issue:jats/4",
			want: "journal:jats",
		},
		{
			name: "role follows isNodeOf",
			ref:  doc.Doc{"@id": "role:r1", "isNodeOf": map[string]any{"@id": "graph:demo"}},
			want: "graph:demo",
		},
		{
			name: "nested embedder chain",
			ref: doc.Doc{
				"@id": "contact:c1",
				"isNodeOf": map[string]any{
					"@id":      "role:r1",
					"isNodeOf": "graph:demo?version=0.1.0",
				},
			},
			want: "graph:demo",
		},
		{
			name: "embeddable without embedder falls back to its id",
			ref:  doc.Doc{"@id": "role:orphan"},
			want: "role:orphan",
		},
		{
			name: "service follows encodesCreativeWork",
			ref: doc.Doc{
				"@id":                 "service:typesetting",
				"encodesCreativeWork": map[string]any{"@id": "graph:demo"},
			},
			want: "graph:demo",
		},
		{
			name: "plain id falls through",
			ref:  "user:alice",
			want: "user:alice",
		},
		{
			name: "nothing resolvable",
			ref:  doc.Doc{"name": "anonymous"},
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.ref)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Resolve() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolvePreserveVersion(t *testing.T) {
	got, err := ResolveOpt("graph:demo?version=1.2.0", Options{PreserveVersion: true})
	if err != nil {
		t.Fatalf("ResolveOpt() error = %v", err)
	}
	if got != "graph:demo?version=1.2.0" {
		t.Fatalf("ResolveOpt() = %q", got)
	}
}

func TestResolveDepthGuard(t *testing.T) {
	// Build an embedder chain deeper than the cap.
	ref := any("graph:demo")
	for i := 0; i < 12; i++ {
		ref = doc.Doc{"@id": "role:r1", "isNodeOf": ref}
	}
	_, err := Resolve(ref)
	if !errors.Is(err, doc.ErrIntegrity) {
		t.Fatalf("Resolve() error = %v, want integrity violation", err)
	}
}
