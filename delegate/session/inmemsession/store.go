// Package inmemsession is an in-memory session.Store, used by tests and the
// cmd/ demo, mirroring the teacher's runtime/agent/engine/inmem pattern of
// keeping a durable-interface-shaped in-memory implementation alongside the
// real one.
package inmemsession

import (
	"context"
	"sync"

	"github.com/veupathdb/strategy-delegate/delegate/session"
)

// Store is a sync.RWMutex-guarded in-memory session.Store.
type Store struct {
	mu     sync.RWMutex
	graphs map[string]*session.Graph
}

// New constructs an empty Store.
func New() *Store {
	return &Store{graphs: make(map[string]*session.Graph)}
}

func (s *Store) GetGraph(ctx context.Context, id string) (*session.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[id]
	if !ok {
		return nil, session.ErrGraphNotFound{ID: id}
	}
	return g, nil
}

func (s *Store) CreateGraph(ctx context.Context, name, graphID string) (*session.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.graphs[graphID]; ok {
		return g, nil
	}
	g := &session.Graph{
		ID:    graphID,
		Name:  name,
		Steps: make(map[string]*session.Step),
		Roots: make(map[string]struct{}),
	}
	s.graphs[graphID] = g
	return g, nil
}

func (s *Store) RemoveGraph(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[id]; !ok {
		return false, nil
	}
	delete(s.graphs, id)
	return true, nil
}

func (s *Store) PutStep(ctx context.Context, graphID string, step *session.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[graphID]
	if !ok {
		return session.ErrGraphNotFound{ID: graphID}
	}
	g.Steps[step.ID] = step
	g.LastStepID = step.ID
	g.History = append(g.History, session.HistoryEntry{Action: "put_step", StepID: step.ID})
	if step.PrimaryID == "" && step.SecondaryID == "" {
		g.Roots[step.ID] = struct{}{}
	}
	return nil
}

func (s *Store) SetMetadata(ctx context.Context, graphID, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[graphID]
	if !ok {
		return session.ErrGraphNotFound{ID: graphID}
	}
	g.Name = name
	g.CurrentStrategy = description
	return nil
}
