package processing

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespace = regexp.MustCompile(`\s+`)

// StripHTML extracts the plain text of an HTML fragment. News
// descriptions and Reddit selftext occasionally arrive with markup;
// the feed and the scoring prompts both want bare text.
func StripHTML(input string) string {
	if input == "" {
		return ""
	}
	if !strings.ContainsAny(input, "<&") {
		return CollapseWhitespace(input)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return CollapseWhitespace(html.UnescapeString(input))
	}
	return CollapseWhitespace(doc.Text())
}

// CollapseWhitespace squeezes runs of whitespace into single spaces.
func CollapseWhitespace(input string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(input, " "))
}

// TruncateTitle shortens free text to at most max runes for use as a
// title, appending an ellipsis when something was cut off.
func TruncateTitle(text string, max int) string {
	text = CollapseWhitespace(text)
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
