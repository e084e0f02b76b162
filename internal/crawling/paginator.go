package crawling

import (
	"context"
	"iter"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/jonathan/handle-crawler/internal/fetch"
	"github.com/jonathan/handle-crawler/internal/types"
)

// Fetcher fetches a path on the directory host. *session.Session implements it.
type Fetcher interface {
	Get(ctx context.Context, path string) (*fetch.Result, error)
}

// Paginator yields the directory's listing pages in ascending order.
type Paginator struct {
	listingPath string
	selector    string
	logger      zerolog.Logger
}

// NewPaginator creates a paginator for the listing at listingPath whose
// pagination controls match selector.
func NewPaginator(listingPath, selector string, logger zerolog.Logger) *Paginator {
	return &Paginator{
		listingPath: listingPath,
		selector:    selector,
		logger:      logger,
	}
}

// PagePath returns the listing path for page n.
func (p *Paginator) PagePath(n int) string {
	sep := "?"
	if strings.Contains(p.listingPath, "?") {
		sep = "&"
	}
	return p.listingPath + sep + "page=" + strconv.Itoa(n)
}

// Pages returns a lazy sequence of listing pages. The first page is fetched to
// discover the page count and is yielded as page 1. A failure on page 1 yields a
// single error and ends the sequence; a failure on a later page yields an error
// for that page and the sequence moves on. Re-invoking restarts from page 1.
func (p *Paginator) Pages(ctx context.Context, f Fetcher) iter.Seq2[types.DirectoryPage, error] {
	return func(yield func(types.DirectoryPage, error) bool) {
		first := types.DirectoryPage{Number: 1, URL: p.PagePath(1)}
		res, err := f.Get(ctx, first.URL)
		if err != nil {
			yield(first, &CrawlError{Page: 1, Message: "failed to fetch first listing page", Cause: err})
			return
		}
		first.HTML = res.HTML

		total, err := MaxPage(res.HTML, p.selector)
		if err != nil {
			yield(first, &CrawlError{Page: 1, Message: "failed to read pagination", Cause: err})
			return
		}
		first.Total = total
		p.logger.Info().Int("pages", total).Msg("discovered directory size")

		if !yield(first, nil) {
			return
		}

		for n := 2; n <= total; n++ {
			page := types.DirectoryPage{Number: n, Total: total, URL: p.PagePath(n)}
			if err := ctx.Err(); err != nil {
				yield(page, &CrawlError{Page: n, Message: "crawl cancelled", Cause: err})
				return
			}

			res, err := f.Get(ctx, page.URL)
			if err != nil {
				if !yield(page, &CrawlError{Page: n, Message: "failed to fetch listing page", Cause: err}) {
					return
				}
				continue
			}
			page.HTML = res.HTML
			if !yield(page, nil) {
				return
			}
		}
	}
}

// MaxPage returns the highest page number among the pagination controls. The
// last control is a "next" affordance and is ignored. Controls that are not
// numbers are skipped. Without any numbered controls the directory has one page.
func MaxPage(html, selector string) (int, error) {
	doc, err := fetch.ParseHTML(html)
	if err != nil {
		return 0, err
	}

	controls := doc.Find(selector)
	maxPage := 1
	controls.Slice(0, max(controls.Length()-1, 0)).Each(func(_ int, s *goquery.Selection) {
		number, err := strconv.Atoi(strings.TrimSpace(s.Text()))
		if err != nil {
			return
		}
		if number > maxPage {
			maxPage = number
		}
	})
	return maxPage, nil
}
