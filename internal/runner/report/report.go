// Package report persists the most recent cycle report so other processes
// (the CLI stats command, a restarted server) can show it.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bakkerme/newsfeed/internal/core"
)

func Save(path string, report *core.CycleReport) error {
	if path == "" {
		return fmt.Errorf("report path is required")
	}
	if report == nil {
		return fmt.Errorf("report is required")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Load returns nil without error when no report has been saved yet.
func Load(path string) (*core.CycleReport, error) {
	if path == "" {
		return nil, fmt.Errorf("report path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read report: %w", err)
	}
	var report core.CycleReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
