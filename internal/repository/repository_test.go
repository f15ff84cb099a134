package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"melody-planner/internal/model"
)

func newWorkspaceRepo(t *testing.T) *WorkspaceRepository {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "remote", "melody.db"), nil)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		t.Cleanup(func() { sqlDB.Close() })
	}
	return NewWorkspaceRepository(db)
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func stamped(ws model.Workspace, at time.Time) model.Workspace {
	ws.LastUpdated = &at
	return ws
}

func TestWorkspaceRepositoryReadWrite(t *testing.T) {
	ctx := context.Background()
	repo := newWorkspaceRepo(t)

	if _, err := repo.Read(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read on empty store: %v", err)
	}

	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ws := stamped(model.SeedWorkspace(t1), t1)
	if err := repo.Write(ctx, "u1", ws); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ws.Name = "Renamed"
	t2 := t1.Add(time.Minute)
	if err := repo.Write(ctx, "u1", stamped(ws, t2)); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := repo.Read(ctx, "u1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Name != "Renamed" || !got.LastUpdated.Equal(t2) {
		t.Fatalf("got %q at %v", got.Name, got.LastUpdated)
	}
	if got.Projects[0].ID != ws.Projects[0].ID {
		t.Fatal("projects not preserved")
	}

	if _, err := repo.Read(ctx, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("documents leak across users: %v", err)
	}
	if err := repo.Write(ctx, "u1", model.Workspace{}); err == nil {
		t.Fatal("Write without lastUpdated succeeded")
	}
}

func TestWorkspaceRepositorySince(t *testing.T) {
	ctx := context.Background()
	repo := newWorkspaceRepo(t)
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, ok, err := repo.Since(ctx, "u1", time.Time{}); err != nil || ok {
		t.Fatalf("Since on empty store = %v, %v", ok, err)
	}
	if err := repo.Write(ctx, "u1", stamped(model.SeedWorkspace(t1), t1)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok, _ := repo.Since(ctx, "u1", t1); ok {
		t.Fatal("document at the same stamp reported as newer")
	}
	ws, ok, err := repo.Since(ctx, "u1", t1.Add(-time.Second))
	if err != nil || !ok {
		t.Fatalf("Since older stamp = %v, %v", ok, err)
	}
	if !ws.LastUpdated.Equal(t1) {
		t.Fatalf("lastUpdated = %v", ws.LastUpdated)
	}

	if err := repo.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Read(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read after delete: %v", err)
	}
}

func TestCacheWorkspace(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	if _, ok, err := c.LoadWorkspace(ctx); err != nil || ok {
		t.Fatalf("LoadWorkspace on empty cache = %v, %v", ok, err)
	}
	ws := model.SeedWorkspace(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err := c.SaveWorkspace(ctx, ws); err != nil {
		t.Fatalf("SaveWorkspace: %v", err)
	}
	ws.Name = "Second"
	if err := c.SaveWorkspace(ctx, ws); err != nil {
		t.Fatalf("SaveWorkspace again: %v", err)
	}
	got, ok, err := c.LoadWorkspace(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadWorkspace = %v, %v", ok, err)
	}
	if got.Name != "Second" || len(got.Projects) != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestCacheBookkeeping(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 123, time.UTC)

	if err := c.SetLastSynced(ctx, at); err != nil {
		t.Fatalf("SetLastSynced: %v", err)
	}
	if got, ok, err := c.LastSynced(ctx); err != nil || !ok || !got.Equal(at) {
		t.Fatalf("LastSynced = %v, %v, %v", got, ok, err)
	}

	if _, ok, _ := c.ChatID(ctx); ok {
		t.Fatal("chat bound on a fresh cache")
	}
	if err := c.SetChatID(ctx, -100123); err != nil {
		t.Fatalf("SetChatID: %v", err)
	}
	if id, ok, err := c.ChatID(ctx); err != nil || !ok || id != -100123 {
		t.Fatalf("ChatID = %d, %v, %v", id, ok, err)
	}

	if muted, _ := c.Muted(ctx); muted {
		t.Fatal("muted by default")
	}
	c.SetMuted(ctx, true)
	if muted, _ := c.Muted(ctx); !muted {
		t.Fatal("mute not stored")
	}

	if unsynced, _ := c.Unsynced(ctx); unsynced {
		t.Fatal("unsynced on a fresh cache")
	}
	if err := c.SetUnsynced(ctx, true); err != nil {
		t.Fatalf("SetUnsynced: %v", err)
	}
	if unsynced, err := c.Unsynced(ctx); err != nil || !unsynced {
		t.Fatalf("Unsynced = %v, %v", unsynced, err)
	}
	c.SetUnsynced(ctx, false)
	if unsynced, _ := c.Unsynced(ctx); unsynced {
		t.Fatal("unsynced marker not cleared")
	}
}

func TestCacheFiredReminders(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	at := time.Now()

	if fired, err := c.Fired(ctx, "t1", "1_day@x"); err != nil || fired {
		t.Fatalf("Fired on empty log = %v, %v", fired, err)
	}
	for i := 0; i < 2; i++ {
		if err := c.RecordFired(ctx, "t1", "1_day@x", at); err != nil {
			t.Fatalf("RecordFired #%d: %v", i, err)
		}
	}
	if fired, _ := c.Fired(ctx, "t1", "1_day@x"); !fired {
		t.Fatal("fired reminder not recorded")
	}
	if fired, _ := c.Fired(ctx, "t1", "3_days@x"); fired {
		t.Fatal("keys are not distinguished")
	}
	if fired, _ := c.Fired(ctx, "t2", "1_day@x"); fired {
		t.Fatal("tasks are not distinguished")
	}
}
