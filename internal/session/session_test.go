package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/handle-crawler/internal/fetch"
)

const cookieName = "club_session"

func testOptions() Options {
	return Options{
		Fetch: fetch.Options{
			Timeout:   2 * time.Second,
			Retries:   1,
			RetryBase: time.Millisecond,
			RetryMax:  2 * time.Millisecond,
		},
		AuthPath:    "/auth/email/",
		AuthField:   "email_or_login",
		LoginMarker: "button.footer-logout",
	}
}

// newDirectory emulates a club host: a valid token sets a cookie, and the root
// page shows a logout button only when the cookie is present.
func newDirectory(t *testing.T, validToken string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var rootHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/email/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("email_or_login") == validToken {
			http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "ok", Path: "/"})
		}
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rootHits.Add(1)
		if c, err := r.Cookie(cookieName); err == nil && c.Value == "ok" {
			_, _ = w.Write([]byte(`<html><body><h1>Главная</h1><footer><button class="footer-logout">Logout</button></footer></body></html>`))
			return
		}
		_, _ = w.Write([]byte(`<html><body><form><input name="email_or_login"></form></body></html>`))
	})
	mux.HandleFunc("/people/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(cookieName); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("members"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &rootHits
}

func TestLogin_Success(t *testing.T) {
	server, _ := newDirectory(t, "good-token")
	auth := NewAuthenticator(testOptions(), zerolog.Nop())

	sess, err := auth.Login(context.Background(), server.URL+"/", "good-token")
	require.NoError(t, err)
	assert.Equal(t, server.URL, sess.BaseURL())

	// Session cookies are reused for later requests.
	res, err := sess.Get(context.Background(), "/people/")
	require.NoError(t, err)
	assert.Equal(t, "members", res.HTML)
}

func TestLogin_MarkerAbsentIsCredentialError(t *testing.T) {
	server, _ := newDirectory(t, "good-token")
	auth := NewAuthenticator(testOptions(), zerolog.Nop())

	sess, err := auth.Login(context.Background(), server.URL, "bad-token")
	require.Error(t, err)
	assert.Nil(t, sess)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ErrCredentialsRejected)
	assert.False(t, errors.Is(err, ErrHostUnreachable))
}

func TestLogin_TextMarker(t *testing.T) {
	server, _ := newDirectory(t, "good-token")
	opts := testOptions()
	opts.LoginMarker = ""
	opts.LoginMarkerText = "Главная"

	_, err := NewAuthenticator(opts, zerolog.Nop()).Login(context.Background(), server.URL, "good-token")
	require.NoError(t, err)
}

func TestLogin_RootFailureIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewAuthenticator(testOptions(), zerolog.Nop()).Login(context.Background(), server.URL, "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHostUnreachable)

	var fetchErr *fetch.Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
}

func TestLogin_HostDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewAuthenticator(testOptions(), zerolog.Nop()).Login(context.Background(), url, "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHostUnreachable)
}

func TestLogin_InvalidBaseURL(t *testing.T) {
	_, err := NewAuthenticator(testOptions(), zerolog.Nop()).Login(context.Background(), "club", "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHostUnreachable)
}

func TestSession_URL(t *testing.T) {
	sess, err := New("https://club.example/", fetch.NewClient(nil))
	require.NoError(t, err)
	assert.Equal(t, "https://club.example/people/?page=2", sess.URL("/people/?page=2"))
	assert.Equal(t, "https://club.example/user/alice", sess.URL("user/alice"))

	_, err = New("nope", fetch.NewClient(nil))
	assert.Error(t, err)
}
