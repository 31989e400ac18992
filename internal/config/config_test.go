package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return v
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: tok
  chat_id: -100500
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Exchange.InfoURL != "https://api.hyperliquid.xyz" {
		t.Errorf("info_url = %s", cfg.Exchange.InfoURL)
	}
	if cfg.Scheduler.PollInterval.Value() != 30*time.Second {
		t.Errorf("poll_interval = %v", cfg.Scheduler.PollInterval.Value())
	}
	if cfg.Selection.Timeframe != "month" || cfg.Selection.Limit != 10 {
		t.Errorf("selection defaults lost: %+v", cfg.Selection)
	}
	if cfg.Notify.QueueSize != 256 {
		t.Errorf("queue_size = %d", cfg.Notify.QueueSize)
	}
}

func TestLoadOverridesAndDurations(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: tok
  chat_id: 42
exchange:
  http_timeout: 5s
scheduler:
  poll_interval: 2m
  trader_delay: 250ms
selection:
  timeframe: day
  min_pnl: "5000"
  min_roi: "10.5"
  limit: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Exchange.HTTPTimeout.Value() != 5*time.Second {
		t.Errorf("http_timeout = %v", cfg.Exchange.HTTPTimeout.Value())
	}
	if cfg.Scheduler.PollInterval.Value() != 2*time.Minute {
		t.Errorf("poll_interval = %v", cfg.Scheduler.PollInterval.Value())
	}
	if cfg.Scheduler.TraderDelay.Value() != 250*time.Millisecond {
		t.Errorf("trader_delay = %v", cfg.Scheduler.TraderDelay.Value())
	}
	if cfg.Selection.MinRoi != "10.5" || cfg.Selection.Limit != 3 {
		t.Errorf("selection overrides lost: %+v", cfg.Selection)
	}
}

func TestDurationAcceptsBareSeconds(t *testing.T) {
	var doc struct {
		D Duration `yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte("d: 45"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.D.Value() != 45*time.Second {
		t.Errorf("bare int = %v, want 45s", doc.D.Value())
	}

	if err := yaml.Unmarshal([]byte("d: nonsense"), &doc); err == nil {
		t.Error("expected error for garbage duration")
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	path := writeConfig(t, `
telegram:
  chat_id: 42
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "token") {
		t.Errorf("error = %v, want token validation failure", err)
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("HYPERWATCH_TELEGRAM_TOKEN", "env-token")
	t.Setenv("HYPERWATCH_CHAT_ID", "-200")

	path := writeConfig(t, `
telegram:
  token: file-token
  chat_id: 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Telegram.Token != "env-token" || cfg.Telegram.ChatID != -200 {
		t.Errorf("env overrides lost: %+v", cfg.Telegram)
	}
}

func TestStoreUpdateValidation(t *testing.T) {
	store, err := NewStore(Default())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := store.Update(KeyMinRoi, "25"); err != nil {
		t.Fatalf("Update(min_roi) error = %v", err)
	}
	if got := store.Snapshot().MinRoi; !got.Equal(mustDecimal(t, "25")) {
		t.Errorf("min_roi = %s, want 25", got)
	}

	before := store.Snapshot().MinPnl
	if err := store.Update(KeyMinPnl, "garbage"); err == nil {
		t.Fatal("expected invalid min_pnl to be rejected")
	}
	if got := store.Snapshot().MinPnl; !got.Equal(before) {
		t.Error("rejected update mutated the store")
	}

	if err := store.Update(KeyPollInterval, "45s"); err != nil {
		t.Fatalf("Update(poll_interval) error = %v", err)
	}
	if got := store.Snapshot().PollInterval; got != 45*time.Second {
		t.Errorf("poll_interval = %v", got)
	}

	if err := store.Update("bogus", "1"); err == nil {
		t.Error("expected unknown key to be rejected")
	}
}
