// Package filter drops fetched items that match configured expr rules.
package filter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bakkerme/newsfeed/internal/core"
)

// RuleConfig is one named drop rule.
type RuleConfig struct {
	Name string `yaml:"name" validate:"required"`
	// Rule is an expr-lang boolean expression. A true result drops the item.
	Rule string `yaml:"rule" validate:"required"`
}

type Rule struct {
	name    string
	source  string
	program *vm.Program
}

func NewRule(cfg RuleConfig) (*Rule, error) {
	if strings.TrimSpace(cfg.Name) == "" || strings.TrimSpace(cfg.Rule) == "" {
		return nil, fmt.Errorf("rule name and expression are required")
	}
	program, err := expr.Compile(cfg.Rule, expr.Env(itemEnv(core.Item{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter rule %q: %w", cfg.Name, err)
	}
	return &Rule{name: cfg.Name, source: cfg.Rule, program: program}, nil
}

func (r *Rule) Name() string {
	return r.name
}

// Match reports whether item should be dropped.
func (r *Rule) Match(item core.Item) (bool, error) {
	result, err := expr.Run(r.program, itemEnv(item))
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter rule %q did not return bool", r.name)
	}
	return matched, nil
}

// Set applies rules in order; the first matching rule drops the item.
type Set struct {
	rules  []*Rule
	logger *slog.Logger
}

func NewSet(configs []RuleConfig, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rules := make([]*Rule, 0, len(configs))
	for _, cfg := range configs {
		rule, err := NewRule(cfg)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return &Set{rules: rules, logger: logger}, nil
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Apply returns the items no rule drops and the number dropped. A rule that
// fails at runtime keeps the item.
func (s *Set) Apply(ctx context.Context, items []core.Item) ([]core.Item, int) {
	if s.Len() == 0 {
		return items, 0
	}
	logger := core.Logger(ctx, s.logger)
	kept := make([]core.Item, 0, len(items))
	dropped := 0
	for _, item := range items {
		if s.drops(logger, item) {
			dropped++
			continue
		}
		kept = append(kept, item)
	}
	return kept, dropped
}

func (s *Set) drops(logger *slog.Logger, item core.Item) bool {
	for _, rule := range s.rules {
		matched, err := rule.Match(item)
		if err != nil {
			logger.Warn("filter rule failed, keeping item", "rule", rule.name, "id", item.ID, "error", err)
			continue
		}
		if matched {
			logger.Debug("item dropped by filter", "rule", rule.name, "id", item.ID)
			return true
		}
	}
	return false
}

func itemEnv(item core.Item) map[string]interface{} {
	return map[string]interface{}{
		"id": item.ID,
		"title": map[string]interface{}{
			"value":  item.Title,
			"length": utf8.RuneCountInString(item.Title),
		},
		"text": map[string]interface{}{
			"value":  item.Text,
			"length": utf8.RuneCountInString(item.Text),
		},
		"summary": map[string]interface{}{
			"value":  item.Summary,
			"length": utf8.RuneCountInString(item.Summary),
		},
		"url":          item.URL,
		"publish_date": item.PublishDate.Time,
	}
}
