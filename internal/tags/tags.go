package tags

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrMalformed is returned for tag lists that cannot be planned.
var ErrMalformed = errors.New("malformed tag list")

// Source resolves the current tag list for a sync cycle.
type Source interface {
	Tags(ctx context.Context) ([]string, error)
}

// Parse splits a comma-separated tag list. Tags are trimmed and keep their
// case; blank entries are skipped, so an empty string yields an empty list.
func Parse(raw string) ([]string, error) {
	if !utf8.ValidString(raw) {
		return nil, fmt.Errorf("%w: invalid utf-8", ErrMalformed)
	}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if strings.IndexFunc(tag, unicode.IsControl) >= 0 {
			return nil, fmt.Errorf("%w: control character in %q", ErrMalformed, tag)
		}
		out = append(out, tag)
	}
	return out, nil
}

// Static always returns the same tags.
type Static []string

func (s Static) Tags(ctx context.Context) ([]string, error) {
	_ = ctx
	return append([]string(nil), s...), nil
}

// File reads a comma-separated tag list from disk on every call, so edits
// take effect on the next cycle. Newlines are treated as separators.
type File struct {
	Path string
}

func (f File) Tags(ctx context.Context) ([]string, error) {
	_ = ctx
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read tag file: %w", err)
	}
	raw := strings.NewReplacer("\r\n", ",", "\n", ",").Replace(string(data))
	return Parse(raw)
}
