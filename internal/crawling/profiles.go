package crawling

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/handle-crawler/internal/fetch"
	"github.com/jonathan/handle-crawler/internal/types"
)

// CardSelectors locate a member card and its fields on a listing page.
type CardSelectors struct {
	Card     string
	FullName string
	Nickname string
	Bio      string
}

// ExtractProfiles splits a listing page into member profiles in card order.
// A card missing a required field is reported in cardErrs as a
// *MalformedProfileError and skipped; the remaining cards are still returned.
func ExtractProfiles(page types.DirectoryPage, sel CardSelectors) (profiles []types.ProfileFragment, cardErrs []error, err error) {
	doc, err := fetch.ParseHTML(page.HTML)
	if err != nil {
		return nil, nil, &CrawlError{Page: page.Number, Message: "failed to parse listing page", Cause: err}
	}

	doc.Find(sel.Card).Each(func(i int, card *goquery.Selection) {
		profile, cardErr := extractProfile(card, sel)
		if cardErr != nil {
			cardErr.Page = page.Number
			cardErr.Position = i
			cardErrs = append(cardErrs, cardErr)
			return
		}
		profile.Page = page.Number
		profile.Position = i
		profiles = append(profiles, profile)
	})

	return profiles, cardErrs, nil
}

func extractProfile(card *goquery.Selection, sel CardSelectors) (types.ProfileFragment, *MalformedProfileError) {
	var profile types.ProfileFragment

	fullName := card.Find(sel.FullName)
	if fullName.Length() == 0 {
		return profile, &MalformedProfileError{Field: "full name"}
	}
	profile.FullName = strings.TrimSpace(fullName.First().Text())

	nickname := card.Find(sel.Nickname)
	if nickname.Length() == 0 {
		return profile, &MalformedProfileError{Field: "nickname"}
	}
	profile.Nickname = normalizeNickname(nickname.First().Text())
	if profile.Nickname == "" {
		return profile, &MalformedProfileError{Field: "nickname"}
	}

	if bio, ok := fetch.InnerHTML(card.Find(sel.Bio)); ok {
		profile.Bio = &bio
	}

	return profile, nil
}

func normalizeNickname(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "@", ""))
}
