package search

import (
	"context"
	"encoding/json"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
)

func TestSearchDisabledReturnsEmptyList(t *testing.T) {
	s := NewService(nil, nil)
	if s.Enabled() {
		t.Fatal("Enabled() = true without a backend")
	}
	list, err := s.Search(context.Background(), Query{Text: "photosynthesis"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if list.Type() != "SearchResultList" || list.GetString("query") != "photosynthesis" {
		t.Fatalf("Search() = %v", list)
	}
	if n, _ := list["numberOfItems"].(int); n != 0 {
		t.Fatalf("numberOfItems = %v", list["numberOfItems"])
	}
	if items := list.List("itemListElement"); len(items) != 0 {
		t.Fatalf("itemListElement = %v", items)
	}
}

func TestIndexID(t *testing.T) {
	cases := []struct{ id, want string }{
		{"graph:demo", "graph-demo"},
		{"graph:demo?version=1.0.0", "graph-demo-version=1.0.0"},
		{"issue:jats/4", "issue-jats-4"},
	}
	for _, tc := range cases {
		if got := indexID(tc.id); got != tc.want {
			t.Fatalf("indexID(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestDecodeString(t *testing.T) {
	hit := meili.Hit{
		"docId": json.RawMessage(`"graph:demo"`),
		"rank":  json.RawMessage(`3`),
	}
	if got := decodeString(hit, "docId"); got != "graph:demo" {
		t.Fatalf("decodeString(docId) = %q", got)
	}
	if got := decodeString(hit, "rank"); got != "" {
		t.Fatalf("decodeString(rank) = %q, want empty for non-string", got)
	}
	if got := decodeString(hit, "missing"); got != "" {
		t.Fatalf("decodeString(missing) = %q", got)
	}
}
