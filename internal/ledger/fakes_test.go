package ledger

import (
	"context"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// In-memory store fakes shared by the tests in this package.

type fakeMarketStore struct {
	markets    map[string]domain.Market
	byCond     map[string]string
	upsertCnt  int
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{
		markets: make(map[string]domain.Market),
		byCond:  make(map[string]string),
	}
}

func (s *fakeMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.upsertCnt++
	s.markets[m.ID] = m
	for _, c := range m.ConditionIDs {
		s.byCond[c] = m.ID
	}
	return nil
}

func (s *fakeMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeMarketStore) GetByCondition(_ context.Context, conditionID string) (domain.Market, error) {
	id, ok := s.byCond[conditionID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return s.markets[id], nil
}

func (s *fakeMarketStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	out := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeMarketStore) Count(_ context.Context) (int64, error) {
	return int64(len(s.markets)), nil
}

type fakePositionStore struct {
	positions map[string]*domain.UserPosition
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{positions: make(map[string]*domain.UserPosition)}
}

func (s *fakePositionStore) Get(_ context.Context, user, marketID string, outcome int) (*domain.UserPosition, error) {
	p, ok := s.positions[domain.PositionKey(user, marketID, outcome)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakePositionStore) Upsert(_ context.Context, pos *domain.UserPosition) error {
	cp := *pos
	s.positions[pos.Key()] = &cp
	return nil
}

func (s *fakePositionStore) ListByUser(_ context.Context, user string, _ domain.ListOpts) ([]*domain.UserPosition, error) {
	var out []*domain.UserPosition
	for _, p := range s.positions {
		if p.User == user {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePositionStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]*domain.UserPosition, error) {
	var out []*domain.UserPosition
	for _, p := range s.positions {
		if p.MarketID == marketID {
			out = append(out, p)
		}
	}
	return out, nil
}
