package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// IndexEntries holds plans, notes and reasons of every couple.
const IndexEntries = "nosotros_entries"

// Meili implements Searcher and indexing via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the index. An
// unreachable server leaves it unhealthy; a background check recovers it.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger.Named("search"),
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
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
		Uid:        IndexEntries,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", IndexEntries), zap.Error(err))
	}

	index := m.client.Index(IndexEntries)
	filterable := []interface{}{"coupleId", "kind"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attributes", zap.Error(err))
	}
	searchable := []string{"title", "body"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", zap.Error(err))
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
			up := err == nil
			if was := m.healthy.Swap(up); up && !was {
				m.logger.Info("meilisearch back", zap.String("index", IndexEntries))
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

// Search queries the entries index restricted to the couple.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = DefaultLimit
	}

	filters := []string{fmt.Sprintf("coupleId = %q", q.CoupleID)}
	if q.Kind != "" {
		filters = append(filters, fmt.Sprintf("kind = %q", string(q.Kind)))
	}
	resp, err := m.client.Index(IndexEntries).Search(q.Text, &meili.SearchRequest{
		Limit:                 limit,
		Filter:                filters,
		AttributesToHighlight: []string{"title", "body"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("search %s: %w", IndexEntries, err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	var formatted map[string]string
	if raw, ok := hit["_formatted"]; ok {
		_ = json.Unmarshal(raw, &formatted)
	}
	field := func(key string) string {
		if v := strings.TrimSpace(formatted[key]); v != "" {
			return v
		}
		var v string
		_ = json.Unmarshal(hit[key], &v)
		return v
	}
	return Result{
		Kind:    Kind(field("kind")),
		ID:      field("id"),
		Title:   field("title"),
		Snippet: field("body"),
		Date:    field("date"),
	}
}

// IndexRecords adds or updates records in bulk.
func (m *Meili) IndexRecords(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(IndexEntries).AddDocuments(records, nil)
	return err
}

// DeleteRecord removes one record from the index.
func (m *Meili) DeleteRecord(id string) error {
	_, err := m.client.Index(IndexEntries).DeleteDocument(id, nil)
	return err
}
