package search

import (
	"strings"
	"sync"
)

// Memory is the fallback searcher over the records of the current mirror.
// It matches every query word case-insensitively in title or body.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func NewMemory() *Memory {
	return &Memory{records: map[string][]Record{}}
}

// Replace swaps the records held for a couple.
func (m *Memory) Replace(coupleID string, records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[coupleID] = records
}

func (m *Memory) Healthy() bool {
	return true
}

func (m *Memory) Search(q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	results := []Result{}
	total := 0
	for _, record := range m.records[q.CoupleID] {
		if q.Kind != "" && record.Kind != q.Kind {
			continue
		}
		if !matches(record, terms) {
			continue
		}
		total++
		if len(results) < limit {
			results = append(results, Result{Kind: record.Kind, ID: record.ID, Title: record.Title, Snippet: record.Body, Date: record.Date})
		}
	}
	return results, total, nil
}

func matches(record Record, terms []string) bool {
	haystack := strings.ToLower(record.Title + " " + record.Body)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
