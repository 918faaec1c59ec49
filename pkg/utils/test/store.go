package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

type faults struct {
	mu  sync.Mutex
	ops map[string]error
}

// FaultyStore wraps an ntree.Store and fails selected operations, including
// those made inside Atomic callbacks.
type FaultyStore struct {
	ntree.Store
	f *faults
}

// NewFaultyStore wraps inner with no faults configured.
func NewFaultyStore(inner ntree.Store) *FaultyStore {
	return &FaultyStore{Store: inner, f: &faults{ops: map[string]error{}}}
}

// FailOn makes op return err until Clear is called. Op is the method name,
// e.g. "CommitIntervals".
func (s *FaultyStore) FailOn(op string, err error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("mock %s failure", op)
	}
	s.f.ops[op] = err
}

// Clear removes every configured fault.
func (s *FaultyStore) Clear() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.ops = map[string]error{}
}

func (s *FaultyStore) fault(op string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return s.f.ops[op]
}

func (s *FaultyStore) LoadAll(ctx context.Context) ([]*ntree.Node, error) {
	if err := s.fault("LoadAll"); err != nil {
		return nil, err
	}
	return s.Store.LoadAll(ctx)
}

func (s *FaultyStore) LoadPositions(ctx context.Context, tenant ntree.TenantID) ([]ntree.TenantPosition, error) {
	if err := s.fault("LoadPositions"); err != nil {
		return nil, err
	}
	return s.Store.LoadPositions(ctx, tenant)
}

func (s *FaultyStore) SaveNode(ctx context.Context, node *ntree.Node) error {
	if err := s.fault("SaveNode"); err != nil {
		return err
	}
	return s.Store.SaveNode(ctx, node)
}

func (s *FaultyStore) SavePosition(ctx context.Context, pos ntree.TenantPosition) error {
	if err := s.fault("SavePosition"); err != nil {
		return err
	}
	return s.Store.SavePosition(ctx, pos)
}

func (s *FaultyStore) DeleteNode(ctx context.Context, id ntree.NodeID) error {
	if err := s.fault("DeleteNode"); err != nil {
		return err
	}
	return s.Store.DeleteNode(ctx, id)
}

func (s *FaultyStore) CommitIntervals(ctx context.Context, intervals []ntree.Interval) error {
	if err := s.fault("CommitIntervals"); err != nil {
		return err
	}
	return s.Store.CommitIntervals(ctx, intervals)
}

func (s *FaultyStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx ntree.Store) error) error {
	if err := s.fault("Atomic"); err != nil {
		return err
	}
	return s.Store.Atomic(ctx, func(ctx context.Context, tx ntree.Store) error {
		return fn(ctx, &FaultyStore{Store: tx, f: s.f})
	})
}
