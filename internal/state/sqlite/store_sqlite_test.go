package sqlite

import (
	"context"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	val, ok, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || val != "value" {
		t.Fatalf("unexpected value: %v (ok=%v)", val, ok)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, err = store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestStoreListByPrefix(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	entries := map[string]string{
		"pending:BTC:1": "a",
		"pending:ETH:2": "b",
		"nonce:main":    "c",
	}
	for k, v := range entries {
		if err := store.Set(ctx, k, v); err != nil {
			t.Fatalf("set %s failed: %v", k, err)
		}
	}
	got, err := store.List(ctx, "pending:")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(got), got)
	}
	if got["pending:BTC:1"] != "a" || got["pending:ETH:2"] != "b" {
		t.Fatalf("unexpected entries: %v", got)
	}
	if _, ok := got["nonce:main"]; ok {
		t.Fatalf("list leaked keys outside prefix")
	}
}
