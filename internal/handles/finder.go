package handles

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/handle-crawler/internal/crawling"
	"github.com/jonathan/handle-crawler/internal/fetch"
	"github.com/jonathan/handle-crawler/internal/types"
)

// Finder gathers handle mentions from a member's short bio and the long-form
// intro on the member's detail page.
type Finder struct {
	detailPath    string
	introSelector string
	logger        zerolog.Logger
}

// NewFinder creates a finder. detailPath is the directory path prefix of
// member detail pages (e.g. "/user/"); introSelector locates the intro block.
func NewFinder(detailPath, introSelector string, logger zerolog.Logger) *Finder {
	return &Finder{
		detailPath:    "/" + strings.Trim(detailPath, "/") + "/",
		introSelector: introSelector,
		logger:        logger,
	}
}

// DetailPath returns the detail page path for nickname.
func (f *Finder) DetailPath(nickname string) string {
	return f.detailPath + url.PathEscape(nickname)
}

// FindHandles returns the distinct handles mentioned in the profile's bio and
// detail-page intro. A failed detail fetch is returned as an error together
// with whatever the bio yielded, so callers can still use partial results.
func (f *Finder) FindHandles(ctx context.Context, sess crawling.Fetcher, profile types.ProfileFragment) ([]string, error) {
	set := make(map[string]struct{})

	if profile.Bio != nil {
		collect(*profile.Bio, set)
	}

	intro, err := f.fetchIntro(ctx, sess, profile.Nickname)
	if err != nil {
		return sorted(set), err
	}
	if intro != nil {
		collect(*intro, set)
	}

	f.logger.Debug().
		Str("nickname", profile.Nickname).
		Bool("bio", profile.Bio != nil).
		Bool("intro", intro != nil).
		Int("handles", len(set)).
		Msg("handles found")

	return sorted(set), nil
}

// fetchIntro returns the intro block's inner markup, or nil if the page has none.
func (f *Finder) fetchIntro(ctx context.Context, sess crawling.Fetcher, nickname string) (*string, error) {
	res, err := sess.Get(ctx, f.DetailPath(nickname))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch detail page for %s: %w", nickname, err)
	}

	doc, err := fetch.ParseHTML(res.HTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page for %s: %w", nickname, err)
	}

	intro, ok := fetch.InnerHTML(doc.Find(f.introSelector))
	if !ok {
		return nil, nil
	}
	return &intro, nil
}
