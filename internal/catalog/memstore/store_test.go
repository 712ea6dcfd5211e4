package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/m3rciful/gatebot/internal/catalog"
)

func TestListDescendingAndCounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, "Latest", fmt.Sprintf("ref-%d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := s.Append(ctx, "Desi", "other"); err != nil {
		t.Fatalf("append: %v", err)
	}

	list, err := s.List(ctx, "Latest")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("len = %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID <= list[i].ID {
			t.Fatalf("not descending at %d: %d, %d", i, list[i-1].ID, list[i].ID)
		}
	}
	if n, _ := s.Count(ctx, "latest"); n != 0 {
		t.Fatalf("categories must be case-sensitive, got %d", n)
	}
	if n, _ := s.CountAll(ctx); n != 6 {
		t.Fatalf("CountAll = %d", n)
	}
	cats, _ := s.Categories(ctx)
	if len(cats) != 2 || cats[0].Category != "Desi" || cats[1].Items != 5 {
		t.Fatalf("categories = %+v", cats)
	}
}

func TestDeleteErrors(t *testing.T) {
	ctx := context.Background()
	s := New()
	item, _ := s.Append(ctx, "Latest", "a")

	if _, err := s.DeleteByID(ctx, item.ID+100); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("DeleteByID missing = %v", err)
	}
	if _, err := s.DeleteByPosition(ctx, "Latest", 1); !errors.Is(err, catalog.ErrRange) {
		t.Fatalf("DeleteByPosition out of range = %v", err)
	}
	if _, err := s.DeleteByPosition(ctx, "Latest", -1); !errors.Is(err, catalog.ErrRange) {
		t.Fatalf("DeleteByPosition negative = %v", err)
	}
	got, err := s.DeleteByID(ctx, item.ID)
	if err != nil || got.ContentRef != "a" {
		t.Fatalf("DeleteByID = %+v, %v", got, err)
	}
	if _, err := s.DeleteByID(ctx, item.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("second DeleteByID = %v", err)
	}
}

func TestDeleteByPositionUnderConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 50; i++ {
		_, _ = s.Append(ctx, "Latest", fmt.Sprintf("seed-%d", i))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = s.Append(ctx, "Latest", fmt.Sprintf("new-%d", i))
		}
	}()
	deleted := make([]catalog.MediaItem, 0, 20)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			it, err := s.DeleteByPosition(ctx, "Latest", 0)
			if err != nil {
				t.Errorf("delete: %v", err)
				return
			}
			deleted = append(deleted, it)
		}
	}()
	wg.Wait()

	// Position 0 is always the newest item at the moment of deletion, so
	// every deleted item must be newer than everything still stored.
	list, _ := s.List(ctx, "Latest")
	if len(list)+len(deleted) != 150 {
		t.Fatalf("lost items: %d remaining + %d deleted", len(list), len(deleted))
	}
	for _, d := range deleted {
		for _, it := range list {
			if it.ID > d.ID && it.ContentRef[:4] == "seed" {
				t.Fatalf("deleted %d while newer seed %d remained", d.ID, it.ID)
			}
		}
	}
}

func TestFailWithWrapsStorageError(t *testing.T) {
	s := New()
	s.FailWith = errors.New("disk full")
	_, err := s.Append(context.Background(), "Latest", "a")
	var se *catalog.StorageError
	if !errors.As(err, &se) || se.Op != "append" {
		t.Fatalf("err = %v", err)
	}
}

func TestUsersAndJoins(t *testing.T) {
	ctx := context.Background()
	s := New()
	created, err := s.EnsureUser(ctx, 7, "Ann")
	if err != nil || !created {
		t.Fatalf("first EnsureUser = %v, %v", created, err)
	}
	created, _ = s.EnsureUser(ctx, 7, "Ann")
	if created {
		t.Fatal("second EnsureUser must not create")
	}
	if err := s.SetAgeConfirmed(ctx, 7); err != nil {
		t.Fatalf("SetAgeConfirmed: %v", err)
	}
	u, _ := s.User(ctx, 7)
	if !u.AgeConfirmed || u.FirstName != "Ann" {
		t.Fatalf("user = %+v", u)
	}
	if st, _ := s.JoinStatus(ctx, 7); st != catalog.JoinNone {
		t.Fatalf("default join status = %s", st)
	}
	_ = s.SetJoinStatus(ctx, 7, catalog.JoinPending)
	if st, _ := s.JoinStatus(ctx, 7); st != catalog.JoinPending {
		t.Fatalf("join status = %s", st)
	}
}
