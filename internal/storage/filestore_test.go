package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if _, ok, err := store.Load(ctx, KeyGifts); err != nil || ok {
		t.Fatalf("Load() missing key = ok %v, err %v, want absent", ok, err)
	}

	if err := store.Save(ctx, KeyGifts, []byte(`[{"id":"g1"}]`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	raw, ok, err := store.Load(ctx, KeyGifts)
	if err != nil || !ok {
		t.Fatalf("Load() after save = ok %v, err %v", ok, err)
	}
	if string(raw) != `[{"id":"g1"}]` {
		t.Errorf("Load() = %s", raw)
	}

	// Overwrite replaces the previous value.
	if err := store.Save(ctx, KeyGifts, []byte(`[]`)); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	raw, _, _ = store.Load(ctx, KeyGifts)
	if string(raw) != `[]` {
		t.Errorf("Load() after overwrite = %s", raw)
	}
}

func TestFileStoreKeySanitization(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := store.Save(context.Background(), KeyYears, []byte(`[2027]`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	want := filepath.Join(dir, "gift-tracker_extra-years.json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected file %s: %v", want, err)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	buf := []byte("original")
	if err := store.Save(ctx, "k", buf); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	buf[0] = 'X'

	raw, ok, err := store.Load(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v", ok, err)
	}
	if string(raw) != "original" {
		t.Errorf("stored value aliased caller buffer: %s", raw)
	}

	raw[0] = 'Y'
	again, _, _ := store.Load(ctx, "k")
	if string(again) != "original" {
		t.Errorf("returned value aliased store buffer: %s", again)
	}
}
