// Package stats exposes catalog totals to admins and to an HTTP listener.
package stats

import (
	"context"

	"github.com/m3rciful/gatebot/internal/catalog"
)

// Reporter answers aggregate questions over the catalog.
type Reporter struct {
	store catalog.Store
}

// NewReporter builds a reporter over store.
func NewReporter(store catalog.Store) *Reporter {
	return &Reporter{store: store}
}

// TotalUsers returns the number of known users.
func (r *Reporter) TotalUsers(ctx context.Context) (int, error) {
	return r.store.TotalUsers(ctx)
}

// TotalItems returns the number of items in category.
func (r *Reporter) TotalItems(ctx context.Context, category string) (int, error) {
	return r.store.Count(ctx, category)
}

// TotalCategories returns the number of non-empty categories.
func (r *Reporter) TotalCategories(ctx context.Context) (int, error) {
	cats, err := r.store.Categories(ctx)
	if err != nil {
		return 0, err
	}
	return len(cats), nil
}

// Totals is the summary without the per-category breakdown.
type Totals struct {
	Users      int `json:"users"`
	Categories int `json:"categories"`
}

// Totals reads the user and category totals.
func (r *Reporter) Totals(ctx context.Context) (Totals, error) {
	users, err := r.TotalUsers(ctx)
	if err != nil {
		return Totals{}, err
	}
	cats, err := r.TotalCategories(ctx)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Users: users, Categories: cats}, nil
}

// Snapshot is the full statistics view.
type Snapshot struct {
	Users      int                     `json:"users"`
	Items      int                     `json:"items"`
	Categories []catalog.CategoryCount `json:"categories"`
}

// Snapshot collects all totals.
func (r *Reporter) Snapshot(ctx context.Context) (Snapshot, error) {
	users, err := r.TotalUsers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	items, err := r.store.CountAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	cats, err := r.store.Categories(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Users: users, Items: items, Categories: cats}, nil
}
