package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML parses a page payload into a goquery document.
func ParseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// InnerHTML returns the inner markup of the first element in sel, and false if
// sel is empty.
func InnerHTML(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	html, err := sel.First().Html()
	if err != nil {
		return "", false
	}
	return html, true
}

// CleanText normalizes whitespace in text: lines are trimmed and blank lines dropped.
func CleanText(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
