package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "last_cycle.yaml")

	missing, err := Load(path)
	if err != nil || missing != nil {
		t.Fatalf("Load() of missing report = %v, %v", missing, err)
	}

	completed := time.Date(2024, 7, 8, 12, 0, 5, 0, time.UTC)
	in := &core.CycleReport{
		RunID:       "run-1",
		Trigger:     "cron",
		StartedAt:   time.Date(2024, 7, 8, 12, 0, 0, 0, time.UTC),
		CompletedAt: &completed,
		Status:      core.CycleStatusCompleted,
		Bunches:     2,
		Fetched:     10,
		Added:       7,
		StoreSize:   40,
		Mutated:     true,
		StopReason:  core.StopReasonQuota,
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if out.RunID != "run-1" || out.Added != 7 || out.StopReason != core.StopReasonQuota || !out.CompletedAt.Equal(completed) {
		t.Fatalf("unexpected report %+v", out)
	}
}
