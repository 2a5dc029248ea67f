// Package memstore is an in-process objectstore.Store.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/JustWint3r/SecureShare/internal/common"
)

type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func New() *Store {
	return &Store{blobs: map[string][]byte{}}
}

func (s *Store) Put(_ context.Context, locator string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[locator] = append([]byte(nil), data...)
	return locator, nil
}

func (s *Store) Get(_ context.Context, locator string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[locator]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", locator, common.ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) Delete(_ context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, locator)
	return nil
}

// Len reports how many blobs are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
