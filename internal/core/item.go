package core

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the wire and storage format of every timestamp in the system.
// Timestamps are always UTC with second resolution.
const TimeLayout = "2006-01-02 15:04:05"

// Timestamp is a UTC, second-resolution time that marshals as TimeLayout.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds and converts it to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// ParseTimestamp parses a TimeLayout string as UTC.
func ParseTimestamp(raw string) (Timestamp, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Timestamp{}, fmt.Errorf("timestamp is required")
	}
	t, err := time.ParseInLocation(TimeLayout, raw, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return Timestamp{Time: t}, nil
}

func (t Timestamp) String() string {
	return t.UTC().Format(TimeLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalText and UnmarshalText keep YAML and other text encodings on
// TimeLayout instead of the RFC 3339 methods promoted from time.Time.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Timestamp) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Item is one news entry. ID is assigned upstream and is the dedup key;
// PublishDate is the sort key. The remaining fields are opaque payload.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Text        string    `json:"text"`
	Summary     string    `json:"summary,omitempty"`
	PublishDate Timestamp `json:"publish_date"`
}
