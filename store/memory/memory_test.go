package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/socrates-agent/socrates/store"
)

func mustCheckpoint(t *testing.T, thread, node string, state any, version int) *store.Checkpoint {
	t.Helper()
	cp, err := store.NewCheckpoint(thread, node, state, version)
	if err != nil {
		t.Fatalf("NewCheckpoint: %v", err)
	}
	return cp
}

func TestMemoryCheckpointStore_New(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	if ms == nil {
		t.Fatal("Store should not be nil")
	}
	var _ store.CheckpointStore = ms
}

func TestMemoryCheckpointStore_BasicOperations(t *testing.T) {
	t.Parallel()

	t.Run("save and load", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryCheckpointStore()
		ctx := context.Background()

		cp := mustCheckpoint(t, "dialogo-fedon", "llm_call", map[string]string{"action": "wikipedia"}, 1)
		cp.Metadata["source"] = "chat"

		if err := ms.Save(ctx, cp); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		loaded, err := ms.Load(ctx, cp.ID)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if loaded.ThreadID != "dialogo-fedon" || loaded.NodeName != "llm_call" {
			t.Errorf("unexpected checkpoint: %+v", loaded)
		}

		var state map[string]string
		if err := loaded.Decode(&state); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if state["action"] != "wikipedia" {
			t.Errorf("state not preserved: %v", state)
		}
		if loaded.Metadata["source"] != "chat" {
			t.Error("metadata not preserved")
		}
	})

	t.Run("load missing returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryCheckpointStore()
		_, err := ms.Load(context.Background(), "does-not-exist")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("stored copy is isolated from caller", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryCheckpointStore()
		ctx := context.Background()
		cp := mustCheckpoint(t, "t", "n", "original", 1)
		if err := ms.Save(ctx, cp); err != nil {
			t.Fatal(err)
		}
		cp.NodeName = "mutated"

		loaded, _ := ms.Load(ctx, cp.ID)
		if loaded.NodeName != "n" {
			t.Errorf("store shares memory with caller: %s", loaded.NodeName)
		}
	})
}

func TestMemoryCheckpointStore_ListAndLatest(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()

	for _, v := range []int{3, 1, 2} {
		if err := ms.Save(ctx, mustCheckpoint(t, "apologia", fmt.Sprintf("node-%d", v), v, v)); err != nil {
			t.Fatal(err)
		}
	}
	if err := ms.Save(ctx, mustCheckpoint(t, "otro", "x", 0, 9)); err != nil {
		t.Fatal(err)
	}

	list, err := ms.List(ctx, "apologia")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(list))
	}
	for i, cp := range list {
		if cp.Version != i+1 {
			t.Errorf("checkpoint %d has version %d", i, cp.Version)
		}
	}

	latest, err := ms.Latest(ctx, "apologia")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Version != 3 {
		t.Errorf("expected version 3, got %d", latest.Version)
	}

	if _, err := ms.Latest(ctx, "unknown"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCheckpointStore_DeleteAndClear(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()

	a := mustCheckpoint(t, "t1", "a", nil, 1)
	b := mustCheckpoint(t, "t1", "b", nil, 2)
	c := mustCheckpoint(t, "t2", "c", nil, 1)
	for _, cp := range []*store.Checkpoint{a, b, c} {
		if err := ms.Save(ctx, cp); err != nil {
			t.Fatal(err)
		}
	}

	if err := ms.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ := ms.List(ctx, "t1")
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("unexpected list after delete: %v", list)
	}

	if err := ms.Clear(ctx, "t1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	list, _ = ms.List(ctx, "t1")
	if len(list) != 0 {
		t.Errorf("thread t1 should be empty, got %d", len(list))
	}
	list, _ = ms.List(ctx, "t2")
	if len(list) != 1 {
		t.Errorf("thread t2 should be untouched, got %d", len(list))
	}
}

func TestMemoryCheckpointStore_Concurrent(t *testing.T) {
	t.Parallel()

	ms := NewMemoryCheckpointStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			cp, err := store.NewCheckpoint("shared", "n", v, v)
			if err != nil {
				t.Error(err)
				return
			}
			if err := ms.Save(ctx, cp); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	list, err := ms.List(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 50 {
		t.Errorf("expected 50 checkpoints, got %d", len(list))
	}
}
