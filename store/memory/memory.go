// Package memory provides a thread-safe in-memory implementation of
// store.Store. Suitable for tests and single-process experiments.
package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jmcleod/vpnca/store"
)

// Store is a thread-safe in-memory implementation of store.Store.
type Store struct {
	mu        sync.Mutex
	byID      map[string]*store.Record
	bySubject map[string]string
}

var _ store.Store = (*Store)(nil)

// New creates a new empty in-memory Store.
func New() *Store {
	return &Store{
		byID:      make(map[string]*store.Record),
		bySubject: make(map[string]string),
	}
}

func cloneRecord(rec *store.Record) *store.Record {
	cp := *rec
	return &cp
}

func (s *Store) Create(rec *store.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bySubject[rec.Subject]; ok {
		return "", fmt.Errorf("%s: %w", rec.Subject, store.ErrConflict)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.byID[rec.ID] = cloneRecord(rec)
	s.bySubject[rec.Subject] = rec.ID
	return rec.ID, nil
}

func (s *Store) FindByID(id string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

func (s *Store) FindBySubject(subject string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.bySubject[subject]
	if !ok {
		return nil, fmt.Errorf("%s: %w", subject, store.ErrNotFound)
	}
	return cloneRecord(s.byID[id]), nil
}

func (s *Store) UpdateStatus(id string, status store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	rec.Status = status
	return nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	delete(s.bySubject, rec.Subject)
	delete(s.byID, id)
	return nil
}
