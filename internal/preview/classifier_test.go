package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/handle-crawler/internal/fetch"
	"github.com/jonathan/handle-crawler/internal/types"
)

var testSelectors = Selectors{
	ChannelCounter:     "div.tgme_channel_info_counter",
	CounterValue:       "span.counter_value",
	ChannelTitle:       ".tgme_channel_info_header_title",
	ChannelDescription: "div.tgme_channel_info_description",
	PageExtra:          "div.tgme_page_extra",
}

const channelPage = `<html><body>
<div class="tgme_channel_info">
  <div class="tgme_channel_info_header"><div class="tgme_channel_info_header_title"><span>Go Weekly</span></div></div>
  <div class="tgme_channel_info_description">News about Go</div>
  <div class="tgme_channel_info_counter"><span class="counter_value">2.5K</span> <span class="counter_type">subscribers</span></div>
</div></body></html>`

const chatPage = `<html><body><div class="tgme_page_title">Club Chat</div><div class="tgme_page_extra">1 234 members, 56 online</div></body></html>`

const personalPage = `<html><body><div class="tgme_page_title">Alice</div><div class="tgme_page_extra">@alice_me</div></body></html>`

func TestClassifyPage(t *testing.T) {
	tests := []struct {
		name string
		html string
		kind types.HandleKind
	}{
		{"channel", channelPage, types.KindChannel},
		{"chat", chatPage, types.KindChat},
		{"personal", personalPage, types.KindPersonal},
		{"unknown layout", `<html><body><p>Something else</p></body></html>`, types.KindUnknown},
		{"counter wins over extra", `<div class="tgme_channel_info_counter"></div><div class="tgme_page_extra">@x</div>`, types.KindChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyPage(tt.html, "handle", testSelectors)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, "handle", got.ID)
		})
	}
}

func TestClassifyPage_ChannelDetails(t *testing.T) {
	got, err := ClassifyPage(channelPage, "goweekly", testSelectors)
	require.NoError(t, err)
	assert.Equal(t, "Go Weekly", got.Title)
	assert.Equal(t, "News about Go", got.Description)
	assert.Equal(t, int64(2500), got.Subscribers)
}

func TestClassifyPage_ChannelMissingSubBlocks(t *testing.T) {
	html := `<div class="tgme_channel_info_counter"><span class="counter_value">???</span></div>`
	got, err := ClassifyPage(html, "bare", testSelectors)
	require.NoError(t, err)
	assert.Equal(t, types.KindChannel, got.Kind)
	assert.Empty(t, got.Title)
	assert.Empty(t, got.Description)
	assert.Zero(t, got.Subscribers)
}

// newProbeHost emulates the preview host: channels stay on /s/{name}, other
// names redirect to /{name}, unknown names 404 or redirect home.
func newProbeHost(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/s/goweekly", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		_, _ = w.Write([]byte(channelPage))
	})
	mux.HandleFunc("/s/club_chat", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/club_chat", http.StatusFound)
	})
	mux.HandleFunc("/club_chat", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatPage))
	})
	mux.HandleFunc("/s/alice_me", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/alice_me", http.StatusFound)
	})
	mux.HandleFunc("/alice_me", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(personalPage))
	})
	mux.HandleFunc("/s/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("/s/welcome", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/home/welcome", http.StatusFound)
	})
	mux.HandleFunc("/home/welcome", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatPage))
	})
	mux.HandleFunc("/s/flaky", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`<div class="tgme_page_extra">Home</div>`))
			return
		}
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClassifier(server *httptest.Server) *Classifier {
	return NewClassifier(Options{
		Fetch: fetch.Options{
			Timeout:   2 * time.Second,
			UserAgent: fetch.DefaultUserAgent,
			Retries:   1,
			RetryBase: time.Millisecond,
			RetryMax:  2 * time.Millisecond,
		},
		ProbeURL:  server.URL,
		PublicURL: "https://t.me",
		Selectors: testSelectors,
	}, zerolog.Nop())
}

func TestClassify(t *testing.T) {
	server := newProbeHost(t)
	c := newTestClassifier(server)

	tests := []struct {
		handle string
		kind   types.HandleKind
		url    string
	}{
		{"goweekly", types.KindChannel, "https://t.me/goweekly"},
		{"club_chat", types.KindChat, "https://t.me/club_chat"},
		{"alice_me", types.KindPersonal, "https://t.me/alice_me"},
		{"missing", types.KindUnknown, ""},
		{"gone", types.KindUnknown, ""},
		{"welcome", types.KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.handle, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.handle)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.handle, got.ID)
			assert.Equal(t, tt.url, got.URL)
		})
	}
}

func TestLandedOn(t *testing.T) {
	tests := []struct {
		finalURL string
		basePath string
		handle   string
		want     bool
	}{
		{"https://t.me/s/goweekly", "", "goweekly", true},
		{"https://t.me/GoWeekly", "", "goweekly", true},
		{"https://t.me/club_chat/", "", "club_chat", true},
		{"https://t.me/s/goweekly?before=10", "", "goweekly", true},
		{"https://t.me/", "", "me", false},
		{"https://t.me/home/welcome", "", "welcome", false},
		{"https://t.me/welcome_back", "", "welcome", false},
		{"https://mirror.example/tg/s/goweekly", "/tg", "goweekly", true},
		{"https://mirror.example/tg/", "/tg", "tg", false},
		{"://bad", "", "bad", false},
	}

	for _, tt := range tests {
		t.Run(tt.finalURL, func(t *testing.T) {
			assert.Equal(t, tt.want, landedOn(tt.finalURL, tt.basePath, tt.handle))
		})
	}
}

func TestClassify_TransientFailureDegradesToUnknown(t *testing.T) {
	c := newTestClassifier(newProbeHost(t))

	got, err := c.Classify(context.Background(), "flaky")
	require.Error(t, err)
	assert.Equal(t, types.KindUnknown, got.Kind)
	assert.False(t, got.Classified())
}

func TestClassify_ConcurrentPartition(t *testing.T) {
	c := newTestClassifier(newProbeHost(t))
	handles := []string{"goweekly", "club_chat", "alice_me", "missing", "gone", "goweekly2"}

	results := make([]types.ClassifiedHandle, len(handles))
	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.Classify(context.Background(), h)
		}()
	}
	wg.Wait()

	// Every handle lands in exactly one category.
	byKind := map[types.HandleKind][]string{}
	for _, r := range results {
		byKind[r.Kind] = append(byKind[r.Kind], r.ID)
	}
	total := 0
	for _, ids := range byKind {
		total += len(ids)
	}
	assert.Equal(t, len(handles), total)
	assert.Equal(t, []string{"goweekly"}, byKind[types.KindChannel])
	assert.Equal(t, []string{"club_chat"}, byKind[types.KindChat])
	assert.Equal(t, []string{"alice_me"}, byKind[types.KindPersonal])
	assert.ElementsMatch(t, []string{"missing", "gone", "goweekly2"}, byKind[types.KindUnknown])
}

func TestClassify_RateLimitHonoursContext(t *testing.T) {
	server := newProbeHost(t)
	c := NewClassifier(Options{
		ProbeURL:  server.URL,
		PublicURL: "https://t.me",
		Rate:      0.001,
		Selectors: testSelectors,
	}, zerolog.Nop())

	_, err := c.Classify(context.Background(), "goweekly")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	got, err := c.Classify(ctx, "club_chat")
	require.Error(t, err)
	assert.Equal(t, types.KindUnknown, got.Kind)
}
