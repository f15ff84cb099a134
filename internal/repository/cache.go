package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"melody-planner/internal/document"
	"melody-planner/internal/model"
)

//go:embed schema.sql
var cacheSchema string

const (
	keyWorkspace  = "workspace"
	keyLastSynced = "last_synced"
	keyChatID     = "telegram_chat_id"
	keyMuted      = "telegram_muted"
	keyUnsynced   = "unsynced"
)

// Cache is the device-local store. It keeps the last known workspace, sync
// bookkeeping, the Telegram binding and the reminders this device already fired.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates the cache file at path.
func OpenCache(path string) (*Cache, error) {
	if path == "" {
		path = "melody-cache.db"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir %q: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// One connection keeps ":memory:" caches coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the value stored under key. ok is false when the key is unset.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// LoadWorkspace returns the cached workspace, if any.
func (c *Cache) LoadWorkspace(ctx context.Context) (model.Workspace, bool, error) {
	raw, ok, err := c.Get(ctx, keyWorkspace)
	if err != nil || !ok {
		return model.Workspace{}, false, err
	}
	ws, err := document.Decode([]byte(raw))
	if err != nil {
		return model.Workspace{}, false, fmt.Errorf("load cached workspace: %w", err)
	}
	return ws, true, nil
}

// SaveWorkspace overwrites the cached workspace.
func (c *Cache) SaveWorkspace(ctx context.Context, ws model.Workspace) error {
	data, err := document.Encode(ws)
	if err != nil {
		return err
	}
	return c.Set(ctx, keyWorkspace, string(data))
}

// LastSynced returns the lastUpdated stamp of the last document exchanged with the
// remote store.
func (c *Cache) LastSynced(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := c.Get(ctx, keyLastSynced)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", keyLastSynced, err)
	}
	return at, true, nil
}

func (c *Cache) SetLastSynced(ctx context.Context, at time.Time) error {
	return c.Set(ctx, keyLastSynced, at.UTC().Format(time.RFC3339Nano))
}

// ChatID returns the bound Telegram chat.
func (c *Cache) ChatID(ctx context.Context) (int64, bool, error) {
	raw, ok, err := c.Get(ctx, keyChatID)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", keyChatID, err)
	}
	return id, true, nil
}

func (c *Cache) SetChatID(ctx context.Context, id int64) error {
	return c.Set(ctx, keyChatID, strconv.FormatInt(id, 10))
}

func (c *Cache) Muted(ctx context.Context) (bool, error) {
	return c.flag(ctx, keyMuted)
}

func (c *Cache) SetMuted(ctx context.Context, muted bool) error {
	return c.setFlag(ctx, keyMuted, muted)
}

// Unsynced reports whether the cached workspace has edits the remote store has not
// acknowledged.
func (c *Cache) Unsynced(ctx context.Context) (bool, error) {
	return c.flag(ctx, keyUnsynced)
}

func (c *Cache) SetUnsynced(ctx context.Context, unsynced bool) error {
	return c.setFlag(ctx, keyUnsynced, unsynced)
}

func (c *Cache) flag(ctx context.Context, key string) (bool, error) {
	raw, _, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return raw == "1", nil
}

func (c *Cache) setFlag(ctx context.Context, key string, on bool) error {
	value := "0"
	if on {
		value = "1"
	}
	return c.Set(ctx, key, value)
}

// Fired reports whether this device already fired the reminder key for a task.
func (c *Cache) Fired(ctx context.Context, taskID, key string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fired_reminders WHERE task_id = ? AND reminder_key = ?", taskID, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check fired reminder: %w", err)
	}
	return n > 0, nil
}

// RecordFired remembers that the reminder key fired for a task. Recording twice is a no-op.
func (c *Cache) RecordFired(ctx context.Context, taskID, key string, at time.Time) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO fired_reminders (task_id, reminder_key, fired_at) VALUES (?, ?, ?)
		ON CONFLICT(task_id, reminder_key) DO NOTHING
	`, taskID, key, at.UTC())
	if err != nil {
		return fmt.Errorf("record fired reminder: %w", err)
	}
	return nil
}
