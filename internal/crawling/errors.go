// Package crawling walks the paginated member directory and splits listing pages into member cards.
package crawling

import "fmt"

// CrawlError represents a directory page that could not be fetched or parsed.
type CrawlError struct {
	Page    int
	Message string
	Cause   error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error on page %d: %s: %v", e.Page, e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error on page %d: %s", e.Page, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// MalformedProfileError represents a member card missing a required field.
type MalformedProfileError struct {
	Page     int
	Position int
	Field    string
}

func (e *MalformedProfileError) Error() string {
	return fmt.Sprintf("malformed profile card %d on page %d: missing %s", e.Position, e.Page, e.Field)
}
