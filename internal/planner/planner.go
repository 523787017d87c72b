// Package planner turns a tag list into bounded upstream query strings.
package planner

import (
	"strings"
	"unicode/utf8"
)

// Separator joins tags inside one bunch.
const Separator = " OR "

// Plan greedily packs tags into OR-joined bunches no longer than maxChars.
// A tag that is longer than maxChars on its own is still emitted whole.
// Bunch order follows tag order. maxChars <= 0 disables the limit.
func Plan(tags []string, maxChars int) []string {
	bunches := []string{}
	var current strings.Builder
	currentLen := 0

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tagLen := utf8.RuneCountInString(tag)
		if currentLen == 0 {
			current.WriteString(tag)
			currentLen = tagLen
			continue
		}
		nextLen := currentLen + utf8.RuneCountInString(Separator) + tagLen
		if maxChars > 0 && nextLen > maxChars {
			bunches = append(bunches, current.String())
			current.Reset()
			current.WriteString(tag)
			currentLen = tagLen
			continue
		}
		current.WriteString(Separator)
		current.WriteString(tag)
		currentLen = nextLen
	}
	if currentLen > 0 {
		bunches = append(bunches, current.String())
	}
	return bunches
}
