package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memMarketStore struct {
	mu     sync.Mutex
	byID   map[string]domain.Market
	byCond map[string]string
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{
		byID:   map[string]domain.Market{},
		byCond: map[string]string{},
	}
}

func (s *memMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[m.ID] = m
	for _, c := range m.ConditionIDs {
		s.byCond[c] = m.ID
	}
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) GetByCondition(_ context.Context, conditionID string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCond[conditionID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *memMarketStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Market, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	return out, nil
}

func (s *memMarketStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byID)), nil
}

type memPositionStore struct {
	mu   sync.Mutex
	data map[string]*domain.UserPosition
}

func newMemPositionStore() *memPositionStore {
	return &memPositionStore{data: map[string]*domain.UserPosition{}}
}

func (s *memPositionStore) Get(_ context.Context, user, marketID string, outcome int) (*domain.UserPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.data[domain.PositionKey(user, marketID, outcome)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return pos, nil
}

func (s *memPositionStore) Upsert(_ context.Context, pos *domain.UserPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[pos.Key()] = pos
	return nil
}

func (s *memPositionStore) ListByUser(_ context.Context, user string, _ domain.ListOpts) ([]*domain.UserPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.UserPosition
	for _, p := range s.data {
		if p.User == user {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPositionStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]*domain.UserPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.UserPosition
	for _, p := range s.data {
		if p.MarketID == marketID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memTxStore struct {
	mu   sync.Mutex
	data map[string]domain.UserTransaction
}

func newMemTxStore() *memTxStore {
	return &memTxStore{data: map[string]domain.UserTransaction{}}
}

func (s *memTxStore) Upsert(_ context.Context, tx domain.UserTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tx.ID] = tx
	return nil
}

func (s *memTxStore) GetByID(_ context.Context, id string) (domain.UserTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.data[id]
	if !ok {
		return domain.UserTransaction{}, domain.ErrNotFound
	}
	return tx, nil
}

func (s *memTxStore) ListByUser(_ context.Context, user string, _ domain.ListOpts) ([]domain.UserTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserTransaction
	for _, tx := range s.data {
		if tx.User == user {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *memTxStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.UserTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserTransaction
	for _, tx := range s.data {
		if tx.MarketID == marketID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *memTxStore) ListBefore(_ context.Context, before time.Time) ([]domain.UserTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserTransaction
	for _, tx := range s.data {
		if tx.BlockTimestamp.Before(before) {
			out = append(out, tx)
		}
	}
	return out, nil
}

type memTransferStore struct {
	mu   sync.Mutex
	data map[string]domain.CollateralTransfer
}

func newMemTransferStore() *memTransferStore {
	return &memTransferStore{data: map[string]domain.CollateralTransfer{}}
}

func (s *memTransferStore) Upsert(_ context.Context, t domain.CollateralTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[t.ID] = t
	return nil
}

func (s *memTransferStore) ListByUser(_ context.Context, user string, _ domain.ListOpts) ([]domain.CollateralTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CollateralTransfer
	for _, t := range s.data {
		if t.From == user || t.To == user {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTransferStore) ListBefore(_ context.Context, before time.Time) ([]domain.CollateralTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CollateralTransfer
	for _, t := range s.data {
		if t.BlockTimestamp.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

type memAuditStore struct {
	mu   sync.Mutex
	data map[string]domain.AuditEntry
}

func newMemAuditStore() *memAuditStore {
	return &memAuditStore{data: map[string]domain.AuditEntry{}}
}

func (s *memAuditStore) Record(_ context.Context, e domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[e.ID] = e
	return nil
}

func (s *memAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range s.data {
		out = append(out, e)
	}
	return out, nil
}

func (s *memAuditStore) byEvent(event string) []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range s.data {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type memCheckpointStore struct {
	mu   sync.Mutex
	data map[string]domain.Checkpoint
	sets int
}

func newMemCheckpointStore() *memCheckpointStore {
	return &memCheckpointStore{data: map[string]domain.Checkpoint{}}
}

func (s *memCheckpointStore) Get(_ context.Context, name string) (domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[name], nil
}

func (s *memCheckpointStore) Set(_ context.Context, name string, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = cp
	s.sets++
	return nil
}

type memBus struct {
	mu       sync.Mutex
	messages map[string][]any
}

func newMemBus() *memBus {
	return &memBus{messages: map[string][]any{}}
}

func (b *memBus) Publish(_ context.Context, channel string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}
