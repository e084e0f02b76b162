// Package types provides type definitions for structured data used throughout the handle crawler.
//
//nolint:revive // types is a standard Go package name pattern
package types

// DirectoryPage is one fetched listing page of the member directory.
type DirectoryPage struct {
	Number int    // 1-based page ordinal
	Total  int    // highest page number discovered on the first page
	URL    string // path the payload was fetched from
	HTML   string // raw page payload
}

// ProfileFragment is the subset of one member card extracted from a listing page.
// Bio is nil when the card has no short-bio block; an empty bio block yields a
// non-nil empty string.
type ProfileFragment struct {
	FullName string
	Nickname string
	Bio      *string // inner markup of the short-bio block, if present
	Page     int     // page the card was found on
	Position int     // 0-based card index within the page
}

// HasBio reports whether the card carried a short-bio block.
func (p ProfileFragment) HasBio() bool {
	return p.Bio != nil
}
