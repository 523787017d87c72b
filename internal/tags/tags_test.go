package tags

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"trims and keeps case", " Tesla, Biden ,covid", []string{"Tesla", "Biden", "covid"}},
		{"skips blanks", "a,, ,b,", []string{"a", "b"}},
		{"inner spaces kept", "New York Knicks, AI", []string{"New York Knicks", "AI"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tc.in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Parse(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"a,\x00b", "ok,\xff\xfe", "tab\tinside"} {
		if _, err := Parse(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q) error = %v, want ErrMalformed", in, err)
		}
	}
}

func TestFileSourceReadsCommaAndNewlineSeparatedTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.txt")
	if err := os.WriteFile(path, []byte("football, celebrities\nDC\n"), 0o644); err != nil {
		t.Fatalf("write tags: %v", err)
	}
	got, err := File{Path: path}.Tags(context.Background())
	if err != nil {
		t.Fatalf("Tags() error: %v", err)
	}
	want := []string{"football", "celebrities", "DC"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tags() = %#v, want %#v", got, want)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := File{Path: filepath.Join(t.TempDir(), "missing")}.Tags(context.Background())
	if err == nil {
		t.Fatalf("expected error for missing tag file")
	}
}

func TestStaticReturnsCopy(t *testing.T) {
	src := Static{"a", "b"}
	got, _ := src.Tags(context.Background())
	got[0] = "changed"
	if src[0] != "a" {
		t.Fatalf("static source mutated through returned slice")
	}
}
