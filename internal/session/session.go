package session

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/jonathan/handle-crawler/internal/fetch"
)

// Session is an authenticated client bound to one directory host.
// It is read-only after Login and safe for concurrent fetches.
type Session struct {
	base   *url.URL
	client *fetch.Client
}

// BaseURL returns the directory base URL without a trailing slash.
func (s *Session) BaseURL() string {
	return strings.TrimSuffix(s.base.String(), "/")
}

// URL resolves a path (with optional query) against the directory base.
func (s *Session) URL(path string) string {
	return s.BaseURL() + "/" + strings.TrimPrefix(path, "/")
}

// Get fetches a directory path with the session cookies.
func (s *Session) Get(ctx context.Context, path string) (*fetch.Result, error) {
	return s.client.Get(ctx, s.URL(path))
}

// New wraps an existing client as a session for baseURL without logging in.
func New(baseURL string, client *fetch.Client) (*Session, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	return &Session{base: base, client: client}, nil
}

// Options configures the authenticator.
type Options struct {
	Fetch           fetch.Options
	AuthPath        string // path receiving the credential form
	AuthField       string // form field carrying the token
	LoginMarker     string // CSS selector present only for signed-in users
	LoginMarkerText string // alternative: text present only for signed-in users
}

// Authenticator establishes sessions against a directory host.
type Authenticator struct {
	opts   Options
	logger zerolog.Logger
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(opts Options, logger zerolog.Logger) *Authenticator {
	return &Authenticator{opts: opts, logger: logger}
}

// Login submits token to the auth endpoint and then checks the host root for the
// signed-in marker. A 200 status alone is not proof of success: a failed login
// re-renders the form with 200.
func (a *Authenticator) Login(ctx context.Context, baseURL, token string) (*Session, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &AuthError{
			BaseURL: baseURL,
			Kind:    ErrHostUnreachable,
			Message: "invalid base URL",
			Cause:   err,
		}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	fetchOpts := a.opts.Fetch
	fetchOpts.Jar = jar

	sess := &Session{base: base, client: fetch.NewClient(&fetchOpts)}

	// The auth endpoint typically redirects; its own status is not meaningful.
	if _, err := sess.client.PostForm(ctx, sess.URL(a.opts.AuthPath), url.Values{a.opts.AuthField: {token}}); err != nil {
		if fetch.StatusCode(err) == 0 {
			return nil, &AuthError{
				BaseURL: baseURL,
				Kind:    ErrHostUnreachable,
				Message: "credential submission failed",
				Cause:   err,
			}
		}
		a.logger.Debug().Err(err).Msg("auth endpoint returned non-success status")
	}

	root, err := sess.client.Get(ctx, sess.BaseURL()+"/")
	if err != nil {
		return nil, &AuthError{
			BaseURL: baseURL,
			Kind:    ErrHostUnreachable,
			Message: "root page request failed",
			Cause:   err,
		}
	}

	ok, err := a.signedIn(root.HTML)
	if err != nil {
		return nil, &AuthError{
			BaseURL: baseURL,
			Kind:    ErrCredentialsRejected,
			Message: "root page could not be parsed",
			Cause:   err,
		}
	}
	if !ok {
		a.logger.Info().Str("base_url", sess.BaseURL()).Msg("signed-in marker missing, check directory URL and token")
		return nil, &AuthError{
			BaseURL: baseURL,
			Kind:    ErrCredentialsRejected,
			Message: "signed-in marker not found on root page",
		}
	}

	a.logger.Info().Str("base_url", sess.BaseURL()).Msg("logged in")
	return sess, nil
}

func (a *Authenticator) signedIn(html string) (bool, error) {
	doc, err := fetch.ParseHTML(html)
	if err != nil {
		return false, err
	}
	if a.opts.LoginMarker != "" && doc.Find(a.opts.LoginMarker).Length() > 0 {
		return true, nil
	}
	if a.opts.LoginMarkerText != "" && strings.Contains(doc.Find("body").Text(), a.opts.LoginMarkerText) {
		return true, nil
	}
	return false, nil
}
