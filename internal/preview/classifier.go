// Package preview classifies messaging handles by probing their public preview pages.
package preview

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jonathan/handle-crawler/internal/fetch"
	"github.com/jonathan/handle-crawler/internal/types"
)

// Selectors locate the structural blocks of a preview page.
type Selectors struct {
	ChannelCounter     string // present only on channel pages
	CounterValue       string // subscriber number inside ChannelCounter
	ChannelTitle       string
	ChannelDescription string
	PageExtra          string // generic description block of chats and accounts
}

// Options configures the classifier.
type Options struct {
	Fetch     fetch.Options
	ProbeURL  string  // preview host; pages live at {ProbeURL}/s/{handle}
	PublicURL string  // base of the public handle URL recorded in output
	Rate      float64 // probe requests per second, 0 = unlimited
	Selectors Selectors
}

// Classifier probes the preview host. It holds no per-handle state and is safe
// for concurrent use.
type Classifier struct {
	client    *fetch.Client
	probeURL  string
	publicURL string
	selectors Selectors
	basePath  string
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(opts Options, logger zerolog.Logger) *Classifier {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	var basePath string
	if u, err := url.Parse(opts.ProbeURL); err == nil {
		basePath = u.Path
	}
	return &Classifier{
		client:    fetch.NewClient(&opts.Fetch),
		basePath:  basePath,
		probeURL:  strings.TrimSuffix(opts.ProbeURL, "/"),
		publicURL: strings.TrimSuffix(opts.PublicURL, "/"),
		selectors: opts.Selectors,
		limiter:   limiter,
		logger:    logger,
	}
}

// ProbeURL returns the preview URL for handle.
func (c *Classifier) ProbeURL(handle string) string {
	return c.probeURL + "/s/" + url.PathEscape(handle)
}

// Classify probes handle and classifies it. A non-success status or an
// unrecognized page yields KindUnknown with a nil error. A transport failure
// that survived retries yields KindUnknown and the error.
func (c *Classifier) Classify(ctx context.Context, handle string) (types.ClassifiedHandle, error) {
	unknown := types.ClassifiedHandle{ID: handle, Kind: types.KindUnknown}

	if err := c.limiter.Wait(ctx); err != nil {
		return unknown, err
	}

	res, err := c.client.Get(ctx, c.ProbeURL(handle))
	if err != nil {
		if status := fetch.StatusCode(err); status != 0 && !fetch.IsRetryable(err) {
			c.logger.Debug().Str("handle", handle).Int("status", status).Msg("handle does not resolve publicly")
			return unknown, nil
		}
		return unknown, fmt.Errorf("probe for %s failed: %w", handle, err)
	}

	// The probe host redirects unknown names elsewhere (e.g. its home page).
	if !landedOn(res.FinalURL, c.basePath, handle) {
		c.logger.Debug().Str("handle", handle).Str("final_url", res.FinalURL).Msg("probe redirected away from handle")
		return unknown, nil
	}

	classified, err := ClassifyPage(res.HTML, handle, c.selectors)
	if err != nil {
		return unknown, err
	}
	if classified.Classified() {
		classified.URL = c.publicURL + "/" + handle
	}

	c.logger.Debug().Str("handle", handle).Str("kind", string(classified.Kind)).Msg("handle classified")
	return classified, nil
}

// landedOn reports whether finalURL is still the handle's own page: its path,
// below basePath, is /{handle} or /s/{handle}.
func landedOn(finalURL, basePath, handle string) bool {
	u, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	rel := strings.Trim(u.Path, "/")
	if base := strings.Trim(basePath, "/"); base != "" {
		rel = strings.TrimPrefix(strings.TrimPrefix(rel, base), "/")
	}
	rel = strings.TrimPrefix(rel, "s/")
	return strings.EqualFold(rel, handle)
}

// ClassifyPage applies the decision tree to a preview page:
// a subscriber counter means a channel; otherwise a description block that
// mentions "@" means a personal account and one without means a chat;
// anything else is unknown. URL is left empty.
func ClassifyPage(html, handle string, sel Selectors) (types.ClassifiedHandle, error) {
	doc, err := fetch.ParseHTML(html)
	if err != nil {
		return types.ClassifiedHandle{ID: handle, Kind: types.KindUnknown}, err
	}

	if counter := doc.Find(sel.ChannelCounter); counter.Length() > 0 {
		return channel(doc, counter.First(), handle, sel), nil
	}

	if extra := doc.Find(sel.PageExtra); extra.Length() > 0 {
		if strings.Contains(extra.First().Text(), "@") {
			return types.ClassifiedHandle{ID: handle, Kind: types.KindPersonal}, nil
		}
		return types.ClassifiedHandle{ID: handle, Kind: types.KindChat}, nil
	}

	return types.ClassifiedHandle{ID: handle, Kind: types.KindUnknown}, nil
}

// channel extracts channel details. Missing sub-blocks default to empty values.
func channel(doc *goquery.Document, counter *goquery.Selection, handle string, sel Selectors) types.ClassifiedHandle {
	h := types.ClassifiedHandle{ID: handle, Kind: types.KindChannel}

	if title := doc.Find(sel.ChannelTitle); title.Length() > 0 {
		h.Title = fetch.CleanText(title.First().Text())
	}
	if desc := doc.Find(sel.ChannelDescription); desc.Length() > 0 {
		h.Description = fetch.CleanText(desc.First().Text())
	}

	value := counter.Find(sel.CounterValue)
	if value.Length() > 0 {
		if n, err := ParseSubscriberCount(value.First().Text()); err == nil {
			h.Subscribers = n
		}
	}
	return h
}
