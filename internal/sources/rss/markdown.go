package rss

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

var markdown = converter.NewConverter(
	converter.WithEscapeMode("smart"),
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// itemText turns a feed description or content body into the text stored on
// an item. HTML becomes markdown; input without tags is only trimmed so it is
// not escaped. If conversion fails the raw input is kept.
func itemText(body string) string {
	body = strings.TrimSpace(body)
	if body == "" || !strings.Contains(body, "<") {
		return body
	}
	md, err := markdown.ConvertString(body)
	if err != nil {
		return body
	}
	return strings.TrimSpace(md)
}
