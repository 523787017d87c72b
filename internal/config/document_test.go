package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseFullDocument(t *testing.T) {
	data := []byte(`
ingest:
  provider: rss
  max_query_chars: 80
  retention: 3d
  epsilon: 1s
  page_size: 50
  feeds:
    - https://example.com/feed.xml
store:
  dsn: sqlite:///tmp/newsfeed.db
read:
  lookback: 1d
  max_items: 100
tags:
  source: file
  file: /etc/newsfeed/tags.txt
  watch: true
trigger:
  cron:
    schedule: "*/5 * * * *"
    timezone: UTC
filters:
  - name: short
    rule: "title.length < 10"
server:
  addr: ":9090"
`)

	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if doc.Ingest.Provider != ProviderRSS || doc.Ingest.MaxQueryChars != 80 {
		t.Fatalf("unexpected ingest %+v", doc.Ingest)
	}
	if doc.Ingest.Retention.Std() != 72*time.Hour {
		t.Fatalf("retention=%v, want 72h", doc.Ingest.Retention.Std())
	}
	if doc.Read.Lookback.Std() != 24*time.Hour || doc.Read.MaxItems != 100 {
		t.Fatalf("unexpected read %+v", doc.Read)
	}
	if doc.Tags.Source != TagSourceFile || !doc.Tags.Watch {
		t.Fatalf("unexpected tags %+v", doc.Tags)
	}
	if doc.Trigger.Cron == nil || doc.Trigger.Cron.Schedule != "*/5 * * * *" {
		t.Fatalf("unexpected trigger %+v", doc.Trigger)
	}
	if len(doc.Filters) != 1 || doc.Filters[0].Name != "short" {
		t.Fatalf("unexpected filters %+v", doc.Filters)
	}
	// Unset fields keep their defaults.
	if doc.Ingest.Language != "en" || doc.Ingest.SortDirection != "DESC" {
		t.Fatalf("defaults lost: %+v", doc.Ingest)
	}
}

func TestDefaultIsValid(t *testing.T) {
	doc := Default()
	if err := doc.Validate(); err != nil {
		t.Fatalf("Default() should validate: %v", err)
	}
	if doc.Ingest.MaxQueryChars != 100 || doc.Read.MaxItems != 700 {
		t.Fatalf("unexpected defaults %+v", doc)
	}
	if doc.Read.Lookback.Std() != 48*time.Hour || doc.Ingest.Retention.Std() != 7*24*time.Hour {
		t.Fatalf("unexpected default windows %+v", doc)
	}
	if !strings.HasPrefix(doc.Store.DSN, "file://") {
		t.Fatalf("default store should be file backed, got %q", doc.Store.DSN)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown provider":  "ingest:\n  provider: bing\n",
		"rss without feeds": "ingest:\n  provider: rss\n",
		"page size too big": "ingest:\n  page_size: 500\n",
		"bad direction":     "ingest:\n  sort_direction: sideways\n",
		"file without path": "tags:\n  source: file\n",
		"filter no rule":    "filters:\n  - name: x\n",
		"bad duration":      "read:\n  lookback: soon\n",
	}
	for name, data := range cases {
		if _, err := Parse([]byte(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFileUsesDefaultsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	doc, err := Load(path, EnvConfig{StoreDSN: "memory://", HTTPAddr: ":7000", Provider: ProviderFake})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if doc.Store.DSN != "memory://" || doc.Server.Addr != ":7000" || doc.Ingest.Provider != ProviderFake {
		t.Fatalf("env overrides not applied: %+v", doc)
	}
}

func TestLoadValidatesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newsfeed.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":8081\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path, EnvConfig{Provider: "nope"}); err == nil {
		t.Fatalf("expected invalid provider from env to fail validation")
	}
	doc, err := Load(path, EnvConfig{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if doc.Server.Addr != ":8081" {
		t.Fatalf("addr=%q", doc.Server.Addr)
	}
}
