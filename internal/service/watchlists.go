package service

import (
	"context"

	"auction-advisor/internal/catalog"
	"auction-advisor/internal/watchlist"
)

// AddWatchList creates a manual watch list.
func (s *Session) AddWatchList(ctx context.Context, name, description string, priority int, ids ...int) watchlist.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.book.AddManual(name, description, priority, ids...)
	s.persist(ctx)
	return l
}

// AddAutoWatchList creates a criteria-driven watch list over the catalog.
func (s *Session) AddAutoWatchList(ctx context.Context, name, description string, priority int, cr watchlist.Criteria) watchlist.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.book.AddAuto(name, description, priority, cr, s.ledger.Catalog().All())
	s.persist(ctx)
	return l
}

// RemoveWatchList deletes a watch list.
func (s *Session) RemoveWatchList(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.book.Remove(id); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// Watch adds a candidate to a list.
func (s *Session) Watch(ctx context.Context, listID string, candidateID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.book.Watch(listID, candidateID); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// Unwatch removes a candidate from a list.
func (s *Session) Unwatch(ctx context.Context, listID string, candidateID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.book.Unwatch(listID, candidateID); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// WatchLists returns every list by descending priority.
func (s *Session) WatchLists() []watchlist.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Lists()
}

// WatchedAvailable returns the unsold candidates of one list.
func (s *Session) WatchedAvailable(listID string) ([]catalog.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.book.Get(listID)
	if err != nil {
		return nil, err
	}
	return watchlist.Available(l, s.ledger.Catalog().All()), nil
}
