// Package search indexes document metadata in Meilisearch and returns hits
// as SearchResultList documents. Result lists leave this package unfiltered
// and unblinded: the read path runs them through the ACL evaluator and the
// blinding engine before anything reaches a caller.
package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"lectern/api/internal/doc"
)

const idxDocuments = "lectern_documents"

// Record is the indexed projection of a document. Identity-bearing fields
// are deliberately absent — the index must never know more than a public
// reader.
type Record struct {
	ID          string `json:"id"`
	DocID       string `json:"docId"`
	ScopeID     string `json:"scopeId"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Query describes a search request.
type Query struct {
	Text    string
	ScopeID string
	Limit   int
	Offset  int
}

// Meili is the Meilisearch-backed index.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates the client and configures the index. The health monitor
// keeps retrying an unreachable instance in the background.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))
	m := &Meili{client: client, done: make(chan struct{})}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxDocuments,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxDocuments, err)
	}

	index := m.client.Index(idxDocuments)
	filterable := []interface{}{"scopeId", "type"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"name", "description"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Index upserts a document's projection.
func (m *Meili) Index(d doc.Doc, scopeID string) error {
	rec := Record{
		ID:          indexID(d.ID()),
		DocID:       d.ID(),
		ScopeID:     scopeID,
		Type:        d.Type(),
		Name:        d.GetString("name"),
		Description: d.GetString("description"),
	}
	if _, err := m.client.Index(idxDocuments).AddDocuments([]Record{rec}, nil); err != nil {
		return fmt.Errorf("index %s: %w", d.ID(), err)
	}
	return nil
}

// Delete removes a document from the index.
func (m *Meili) Delete(id string) error {
	if _, err := m.client.Index(idxDocuments).DeleteDocument(indexID(id), nil); err != nil {
		return fmt.Errorf("deindex %s: %w", id, err)
	}
	return nil
}

// Search returns matching document ids, best first.
func (m *Meili) Search(q Query) ([]string, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}
	sr := &meili.SearchRequest{
		Limit:  limit,
		Offset: int64(q.Offset),
	}
	if q.ScopeID != "" {
		sr.Filter = fmt.Sprintf("scopeId = %q", q.ScopeID)
	}

	resp, err := m.client.Index(idxDocuments).Search(q.Text, sr)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id := decodeString(hit, "docId"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, int(resp.EstimatedTotalHits), nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// indexID makes a public id safe as a Meilisearch primary key.
func indexID(id string) string {
	return strings.NewReplacer(":", "-", "?", "-", "/", "-").Replace(id)
}
