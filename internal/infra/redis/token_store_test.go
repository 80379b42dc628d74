package redis

import (
	"context"
	"testing"
	"time"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	if err := store.Save(ctx, "tok", "user-1", time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	userID, err := store.Resolve(ctx, "tok")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1, got %q", userID)
	}

	mr.FastForward(2 * time.Minute)
	userID, err = store.Resolve(ctx, "tok")
	if err != nil {
		t.Fatalf("resolve expired: %v", err)
	}
	if userID != "" {
		t.Fatalf("expected expired token, got %q", userID)
	}
}

func TestTokenStoreDelete(t *testing.T) {
	_, client := newTestClient(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	if err := store.Save(ctx, "tok", "user-1", time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "tok"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	userID, err := store.Resolve(ctx, "tok")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if userID != "" {
		t.Fatalf("expected no user after delete, got %q", userID)
	}
}

func TestPresenceMarkers(t *testing.T) {
	mr, client := newTestClient(t)
	presence := NewPresence(client, time.Minute)

	presence.Touch("lobby-1")
	if !mr.Exists("lobby:live:lobby-1") {
		t.Fatal("expected presence marker after touch")
	}

	presence.Release("lobby-1")
	if mr.Exists("lobby:live:lobby-1") {
		t.Fatal("expected marker removed after release")
	}
}
