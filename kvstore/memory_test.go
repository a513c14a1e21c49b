package kvstore

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	raw, err := store.Get(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if raw != nil {
		t.Errorf("missing key returned %s", raw)
	}

	if err := store.Set(ctx, "k", map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	raw, err = store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]int
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["n"] != 1 {
		t.Errorf("decoded %v", decoded)
	}

	if err := store.Delete(ctx, "k", "missing"); err != nil {
		t.Fatal(err)
	}
	raw, _ = store.Get(ctx, "k")
	if raw != nil {
		t.Error("key survived delete")
	}
}

func TestMemoryWatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var batches []map[string]Change
	unsubscribe := store.Watch(func(changes map[string]Change) {
		batches = append(batches, changes)
	})

	if err := store.Set(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	// Deleting a missing key produces no batch.
	if err := store.Delete(ctx, "nope"); err != nil {
		t.Fatal(err)
	}

	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}

	first := batches[0]["k"]
	if string(first.New) != `"v1"` || first.Old != nil {
		t.Errorf("first change = %+v", first)
	}
	second := batches[1]["k"]
	if string(second.New) != `"v2"` || string(second.Old) != `"v1"` {
		t.Errorf("second change = %+v", second)
	}
	third := batches[2]["k"]
	if third.New != nil || string(third.Old) != `"v2"` {
		t.Errorf("delete change = %+v", third)
	}

	unsubscribe()
	if err := store.Set(ctx, "k", "v3"); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 3 {
		t.Error("unsubscribed watcher still notified")
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if err := store.Set(ctx, "k", "value"); err != nil {
		t.Fatal(err)
	}

	raw, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	raw[0] = 'X'

	again, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != `"value"` {
		t.Errorf("stored value was mutated through the returned slice: %s", again)
	}
}
