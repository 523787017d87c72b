package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from strings such as "7d",
// "1w2d" or "90m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parseDurationExtended(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

var calendarUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// parseDurationExtended accepts everything time.ParseDuration does plus the
// units d (24h) and w (7d), freely mixed: "1w2d3h", "1.5d", "-2w".
func parseDurationExtended(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if !strings.ContainsAny(s, "dw") {
		return time.ParseDuration(s)
	}

	sign := time.Duration(1)
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}

	var total time.Duration
	for s != "" {
		number, unit, rest, ok := nextComponent(s)
		if !ok {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		s = rest
		if scale, ok := calendarUnits[unit]; ok {
			value, err := strconv.ParseFloat(number, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", raw)
			}
			total += time.Duration(value * float64(scale))
			continue
		}
		part, err := time.ParseDuration(number + unit)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		total += part
	}
	return sign * total, nil
}

// nextComponent splits "12.5h30m" into "12.5", "h" and "30m".
func nextComponent(s string) (number, unit, rest string, ok bool) {
	i := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if i <= 0 {
		return "", "", "", false
	}
	number, s = s[:i], s[i:]
	j := strings.IndexFunc(s, func(r rune) bool { return (r >= '0' && r <= '9') || r == '.' })
	if j < 0 {
		j = len(s)
	}
	unit, rest = s[:j], s[j:]
	if unit == "" || strings.Count(number, ".") > 1 {
		return "", "", "", false
	}
	return number, unit, rest, true
}
