// Package memstore is an in-memory catalog.Store for tests and local runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/gatebot/internal/catalog"
)

// Store keeps all state in maps guarded by a single mutex, so each method is
// atomic with respect to the others.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]catalog.MediaItem
	users  map[int64]catalog.User
	gate   catalog.GateConfig
	joins  map[int64]catalog.JoinStatus
	now    func() time.Time

	// FailWith, when set, is returned (wrapped as a StorageError) by every
	// operation.
	FailWith error
}

var _ catalog.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		items: make(map[int64]catalog.MediaItem),
		users: make(map[int64]catalog.User),
		joins: make(map[int64]catalog.JoinStatus),
		now:   time.Now,
	}
}

func (s *Store) fail(op string) error {
	if s.FailWith != nil {
		return catalog.Storage(op, s.FailWith)
	}
	return nil
}

// Append stores a new item under the next identifier.
func (s *Store) Append(_ context.Context, category, contentRef string) (catalog.MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("append"); err != nil {
		return catalog.MediaItem{}, err
	}
	s.nextID++
	item := catalog.MediaItem{
		ID:         s.nextID,
		Category:   category,
		ContentRef: contentRef,
		CreatedAt:  s.now().UTC(),
	}
	s.items[item.ID] = item
	return item, nil
}

// listLocked returns the category items in descending ID order.
func (s *Store) listLocked(category string) []catalog.MediaItem {
	out := make([]catalog.MediaItem, 0)
	for _, it := range s.items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// List returns the category items, most recent first.
func (s *Store) List(_ context.Context, category string) ([]catalog.MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("list"); err != nil {
		return nil, err
	}
	return s.listLocked(category), nil
}

// Exists reports whether the exact (category, contentRef) pair is stored.
func (s *Store) Exists(_ context.Context, category, contentRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("exists"); err != nil {
		return false, err
	}
	for _, it := range s.items {
		if it.Category == category && it.ContentRef == contentRef {
			return true, nil
		}
	}
	return false, nil
}

// DeleteByID removes the item with the given identifier.
func (s *Store) DeleteByID(_ context.Context, id int64) (catalog.MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("delete_by_id"); err != nil {
		return catalog.MediaItem{}, err
	}
	it, ok := s.items[id]
	if !ok {
		return catalog.MediaItem{}, &catalog.NotFoundError{ID: id}
	}
	delete(s.items, id)
	return it, nil
}

// DeleteByPosition resolves index and deletes under the same lock.
func (s *Store) DeleteByPosition(_ context.Context, category string, index int) (catalog.MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("delete_by_position"); err != nil {
		return catalog.MediaItem{}, err
	}
	list := s.listLocked(category)
	if index < 0 || index >= len(list) {
		return catalog.MediaItem{}, &catalog.RangeError{Category: category, Index: index, Count: len(list)}
	}
	it := list[index]
	delete(s.items, it.ID)
	return it, nil
}

// Count returns the number of items in category.
func (s *Store) Count(_ context.Context, category string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("count"); err != nil {
		return 0, err
	}
	n := 0
	for _, it := range s.items {
		if it.Category == category {
			n++
		}
	}
	return n, nil
}

// CountAll returns the number of stored items.
func (s *Store) CountAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("count_all"); err != nil {
		return 0, err
	}
	return len(s.items), nil
}

// Categories returns per-category counts ordered by name.
func (s *Store) Categories(_ context.Context) ([]catalog.CategoryCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("categories"); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, it := range s.items {
		counts[it.Category]++
	}
	out := make([]catalog.CategoryCount, 0, len(counts))
	for cat, n := range counts {
		out = append(out, catalog.CategoryCount{Category: cat, Items: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// EnsureUser creates the user if missing and reports whether it was created.
func (s *Store) EnsureUser(_ context.Context, id int64, firstName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ensure_user"); err != nil {
		return false, err
	}
	if _, ok := s.users[id]; ok {
		return false, nil
	}
	s.users[id] = catalog.User{ID: id, FirstName: firstName, CreatedAt: s.now().UTC()}
	return true, nil
}

// User returns the stored user.
func (s *Store) User(_ context.Context, id int64) (catalog.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("user"); err != nil {
		return catalog.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return catalog.User{}, &catalog.NotFoundError{ID: id}
	}
	return u, nil
}

// SetAgeConfirmed records the age confirmation flag for a user.
func (s *Store) SetAgeConfirmed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("set_age_confirmed"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		u = catalog.User{ID: id, CreatedAt: s.now().UTC()}
	}
	u.AgeConfirmed = true
	s.users[id] = u
	return nil
}

// TotalUsers returns the number of known users.
func (s *Store) TotalUsers(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("total_users"); err != nil {
		return 0, err
	}
	return len(s.users), nil
}

// GateConfig returns the active configuration.
func (s *Store) GateConfig(_ context.Context) (catalog.GateConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("gate_config"); err != nil {
		return catalog.GateConfig{}, err
	}
	return s.gate, nil
}

// ReplaceGateConfig swaps the whole configuration.
func (s *Store) ReplaceGateConfig(_ context.Context, cfg catalog.GateConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("replace_gate_config"); err != nil {
		return err
	}
	cfg.UpdatedAt = s.now().UTC()
	s.gate = cfg
	return nil
}

// JoinStatus returns the recorded join status, JoinNone when absent.
func (s *Store) JoinStatus(_ context.Context, userID int64) (catalog.JoinStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("join_status"); err != nil {
		return catalog.JoinNone, err
	}
	if st, ok := s.joins[userID]; ok {
		return st, nil
	}
	return catalog.JoinNone, nil
}

// SetJoinStatus upserts the join status of a user.
func (s *Store) SetJoinStatus(_ context.Context, userID int64, status catalog.JoinStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("set_join_status"); err != nil {
		return err
	}
	s.joins[userID] = status
	return nil
}
