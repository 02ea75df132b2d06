package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFSStore_PutGetDelete(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	ctx := context.Background()

	id := NewID(".wav")
	if err := store.Put(ctx, id, []byte("audio")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("Get() = %q, want %q", data, "audio")
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is not an error.
	if err := store.Delete(ctx, id); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestFSStore_Exists(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	ctx := context.Background()

	id := NewID(".wav")
	if exists, err := store.Exists(ctx, id); err != nil || exists {
		t.Errorf("Exists() before Put = %v, %v, want false, nil", exists, err)
	}

	if err := store.Put(ctx, id, []byte("audio")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if exists, err := store.Exists(ctx, id); err != nil || !exists {
		t.Errorf("Exists() after Put = %v, %v, want true, nil", exists, err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if exists, err := store.Exists(ctx, id); err != nil || exists {
		t.Errorf("Exists() after Delete = %v, %v, want false, nil", exists, err)
	}

	if _, err := store.Exists(ctx, "../escape.wav"); err == nil {
		t.Error("Exists() accepted a traversal id")
	}
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}

	if err := store.Put(context.Background(), "../escape.wav", []byte("x")); err == nil {
		t.Error("Put() accepted a traversal id")
	}
	if _, err := store.Get(context.Background(), ""); err == nil {
		t.Error("Get() accepted an empty id")
	}
}

func TestFSStore_DeleteOlderThan(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	ctx := context.Background()

	oldID := NewID(".wav")
	newID := NewID(".wav")
	if err := store.Put(ctx, oldID, []byte("old")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, newID, []byte("new")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Everything was just written, so a cutoff in the past removes nothing.
	removed, err := store.DeleteOlderThan(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}

	// A cutoff in the future removes both.
	removed, err = store.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, err := store.Get(ctx, oldID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old object survived cleanup: %v", err)
	}
}

func TestCleaner_Sweep(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	ctx := context.Background()

	id := NewID(".wav")
	if err := store.Put(ctx, id, []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Retention of an hour keeps the fresh object.
	cleaner := NewCleaner(store, CleanupConfig{Retention: time.Hour})
	removed, err := cleaner.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}

	// A negative retention pushes the cutoff into the future.
	cleaner = NewCleaner(store, CleanupConfig{Retention: -time.Hour})
	if cleaner.cfg.Retention != 24*time.Hour {
		t.Errorf("Retention default = %v, want 24h", cleaner.cfg.Retention)
	}
}

func TestNewID(t *testing.T) {
	id := NewID(".wav")
	if !strings.HasSuffix(id, ".wav") {
		t.Errorf("NewID() = %q, want .wav suffix", id)
	}
	if id == NewID(".wav") {
		t.Error("NewID() returned duplicate IDs")
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"a.wav", "audio/wav"},
		{"a.csv", "text/csv"},
		{"a.txt", "text/plain"},
		{"a.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentType(tt.id); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
