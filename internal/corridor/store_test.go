package corridor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleState() State {
	return State{
		Phase:      PhaseAuthPaused,
		Stage:      StageAwaitingKey,
		Input:      StartInput{Prompt: "fox in a suit", ProductID: 1},
		OrderID:    200,
		GuestToken: "tok-abc",
		WasGuest:   true,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("empty store should miss, ok=%v err=%v", ok, err)
	}

	if err := store.Save(sampleState()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("load failed, ok=%v err=%v", ok, err)
	}
	if loaded.GuestToken != "tok-abc" || loaded.Phase != PhaseAuthPaused {
		t.Fatalf("loaded state mismatch: %+v", loaded)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok, _ := store.Load(); ok {
		t.Fatalf("cleared store should miss")
	}
}

func TestMemoryStoreExpiresDrafts(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	now := time.Unix(1000, 0)
	store.clock = func() time.Time { return now }

	if err := store.Save(sampleState()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	now = now.Add(29 * time.Minute)
	if _, ok, _ := store.Load(); !ok {
		t.Fatalf("draft within ttl should load")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Load(); ok {
		t.Fatalf("expired draft should miss")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "corridor.json")
	store := NewFileStore(path, time.Hour)

	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("missing file should miss, ok=%v err=%v", ok, err)
	}

	if err := store.Save(sampleState()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("load failed, ok=%v err=%v", ok, err)
	}
	if loaded.OrderID != 200 || loaded.Stage != StageAwaitingKey {
		t.Fatalf("loaded state mismatch: %+v", loaded)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok, _ := store.Load(); ok {
		t.Fatalf("cleared store should miss")
	}
	// 重复清除不报错
	if err := store.Clear(); err != nil {
		t.Fatalf("clear on missing file failed: %v", err)
	}
}

func TestFileStoreTreatsCorruptDraftAsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corridor.json")
	store := NewFileStore(path, time.Hour)

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file failed: %v", err)
	}
	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("corrupt draft should be a miss, ok=%v err=%v", ok, err)
	}
}

func TestFileStoreExpiresDrafts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corridor.json")
	store := NewFileStore(path, 30*time.Minute)
	now := time.Unix(1000, 0)
	store.clock = func() time.Time { return now }

	if err := store.Save(sampleState()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	now = now.Add(time.Hour)
	if _, ok, _ := store.Load(); ok {
		t.Fatalf("expired draft should miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expired draft file should be removed")
	}
}
