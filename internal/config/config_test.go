package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "MELODY_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Debounce.Duration != 2*time.Second || cfg.ReminderWindow.Duration != time.Minute || cfg.WriteRetries != 3 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.SignedIn() {
		t.Fatal("signed in without a user id")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "melody.toml")
	body := `
user_id = "u-1"
workspace_name = "Studio"
debounce = "750ms"
write_retries = 5
telegram_chat_id = 123
digest_time = ""
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MELODY_DEBOUNCE", "3s")
	t.Setenv("MELODY_TELEGRAM_CHAT_ID", "-99")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UserID != "u-1" || cfg.WorkspaceName != "Studio" || cfg.WriteRetries != 5 {
		t.Fatalf("file values = %+v", cfg)
	}
	if cfg.Debounce.Duration != 3*time.Second || cfg.TelegramChatID != -99 {
		t.Fatalf("env overrides = %v %d", cfg.Debounce, cfg.TelegramChatID)
	}
	if cfg.DigestTime != "" || cfg.PollInterval.Duration != 10*time.Second {
		t.Fatalf("untouched values = %+v", cfg)
	}
}

func TestLoadConfigEnvPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "other.toml")
	os.WriteFile(path, []byte(`http_addr = ":9000"`), 0o644)
	t.Setenv("MELODY_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("http_addr = %q", cfg.HTTPAddr)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("missing explicit file accepted")
	}

	cases := map[string]string{
		"bad duration": `debounce = "soon"`,
		"zero window":  `reminder_window = "0s"`,
		"bad digest":   `digest_time = "9am"`,
		"no retries":   `write_retries = 0`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "melody.toml")
			os.WriteFile(path, []byte(body), 0o644)
			if _, err := Load(path); err == nil {
				t.Fatalf("%s accepted", body)
			}
		})
	}

	t.Setenv("MELODY_WRITE_RETRIES", "many")
	if _, err := Load(""); err == nil {
		t.Fatal("bad env value accepted")
	}
}
