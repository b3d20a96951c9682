// Package search indexes a couple's plans, notes and reasons and answers
// queries from Meilisearch, falling back to matching over the mirror.
package search

import (
	"sync"

	"go.uber.org/zap"

	"nosotros/api/internal/couple"
)

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory searcher.
type Service struct {
	meili  *Meili
	memory *Memory
	logger *zap.Logger

	mu      sync.Mutex
	indexed map[string]map[string]struct{}
	wg      sync.WaitGroup
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: meili, memory: NewMemory(), logger: logger.Named("search"), indexed: map[string]map[string]struct{}{}}
}

// Search tries Meilisearch if healthy, otherwise falls back to the mirror.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to memory", zap.Error(err))
	}
	results, total, _ := s.memory.Search(q)
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Index refreshes the couple's records. The fallback is updated at once;
// Meilisearch is updated in the background, deleting entries that no
// longer exist since the previous index of the same couple.
func (s *Service) Index(coupleID string, doc couple.Document) {
	records := Records(coupleID, doc)
	s.memory.Replace(coupleID, records)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	current := make(map[string]struct{}, len(records))
	for _, record := range records {
		current[record.ID] = struct{}{}
	}
	s.mu.Lock()
	var removed []string
	for id := range s.indexed[coupleID] {
		if _, ok := current[id]; !ok {
			removed = append(removed, id)
		}
	}
	s.indexed[coupleID] = current
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.meili.IndexRecords(records); err != nil {
			s.logger.Warn("index records", zap.String("couple_id", coupleID), zap.Error(err))
		}
		for _, id := range removed {
			if err := s.meili.DeleteRecord(id); err != nil {
				s.logger.Warn("delete record", zap.String("id", id), zap.Error(err))
			}
		}
	}()
}

// MeiliHealthy reports whether queries are served by Meilisearch.
func (s *Service) MeiliHealthy() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Wait blocks until background index updates finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close waits for pending updates and stops the health monitor.
func (s *Service) Close() {
	s.wg.Wait()
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
