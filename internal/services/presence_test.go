package services

import (
	"context"
	"testing"
)

func TestPresenceStore_AddRemove(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewPresenceStore(rdb)
	ctx := context.Background()

	if err := store.Add(ctx, 1); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	online, err := store.IsOnline(ctx, 1)
	if err != nil {
		t.Fatalf("IsOnline() error = %v", err)
	}
	if !online {
		t.Error("user 1 should be online")
	}

	removed, err := store.Remove(ctx, 1)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !removed {
		t.Error("Remove() should report the user was online")
	}

	online, _ = store.IsOnline(ctx, 1)
	if online {
		t.Error("user 1 should be offline after removal")
	}
}

func TestPresenceStore_AddIdempotent(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewPresenceStore(rdb)
	ctx := context.Background()

	store.Add(ctx, 7)
	store.Add(ctx, 7)

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, expected 1 after duplicate adds", count)
	}
}

func TestPresenceStore_RemoveOffline(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewPresenceStore(rdb)

	removed, err := store.Remove(context.Background(), 99)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if removed {
		t.Error("Remove() of an offline user should report false")
	}
}

func TestPresenceStore_Members(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewPresenceStore(rdb)
	ctx := context.Background()

	for _, id := range []uint{3, 1, 2} {
		store.Add(ctx, id)
	}

	ids, err := store.Members(ctx)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Members() returned %d ids, expected 3", len(ids))
	}

	seen := make(map[uint]bool)
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range []uint{1, 2, 3} {
		if !seen[id] {
			t.Errorf("Members() missing user %d", id)
		}
	}
}
