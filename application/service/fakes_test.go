package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/domain/query"
)

// memorySummaryStore keeps summaries in a map and can be scripted to fail.
type memorySummaryStore struct {
	mu        sync.Mutex
	summaries map[uuid.UUID]basket.Summary
	getErr    error
	saveErrs  []error
	onGet     func()
	gets      int
	saves     int
}

func newMemorySummaryStore() *memorySummaryStore {
	return &memorySummaryStore{summaries: make(map[uuid.UUID]basket.Summary)}
}

func (m *memorySummaryStore) Get(_ context.Context, productID uuid.UUID) (basket.Summary, error) {
	m.mu.Lock()
	onGet := m.onGet
	m.gets++
	m.mu.Unlock()
	if onGet != nil {
		onGet()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return basket.Summary{}, m.getErr
	}
	if s, ok := m.summaries[productID]; ok {
		return s, nil
	}
	return basket.NewSummary(productID), nil
}

func (m *memorySummaryStore) Save(_ context.Context, s basket.Summary) (basket.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if len(m.saveErrs) > 0 {
		err := m.saveErrs[0]
		m.saveErrs = m.saveErrs[1:]
		if err != nil {
			return basket.Summary{}, err
		}
	}
	current, ok := m.summaries[s.ProductID()]
	if ok && current.Version() != s.Version() || !ok && !s.IsNew() {
		return basket.Summary{}, basket.ErrConcurrentUpdate
	}
	saved := s.WithVersion(s.Version()+1, s.CreatedAt(), s.UpdatedAt())
	m.summaries[s.ProductID()] = saved
	return saved, nil
}

func (m *memorySummaryStore) Find(_ context.Context, _ ...query.Option) ([]basket.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]basket.Summary, 0, len(m.summaries))
	for _, s := range m.summaries {
		out = append(out, s)
	}
	return out, nil
}

func (m *memorySummaryStore) Count(_ context.Context, _ ...query.Option) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.summaries)), nil
}

func (m *memorySummaryStore) count(productID uuid.UUID, c basket.Combination) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.summaries[productID].Relationship(c)
	if !ok {
		return 0
	}
	return r.BasketCount()
}

func (m *memorySummaryStore) calls() (gets, saves int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets, m.saves
}
