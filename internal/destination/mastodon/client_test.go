package mastodon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/post"
	"github.com/hossain-khan/social-sync/internal/transform"
)

type fakeServer struct {
	mu           sync.Mutex
	statusCode   int
	instanceJSON string
	form         map[string][]string
	uploads      []string
}

func newServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{
		statusCode:   http.StatusOK,
		instanceJSON: `{"uri":"m.example","title":"M","configuration":{"statuses":{"max_characters":1000,"max_media_attachments":4}}}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/verify_credentials", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"The access token is invalid"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"1","username":"me","acct":"me"}`))
	})
	mux.HandleFunc("/api/v1/instance", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		_, _ = w.Write([]byte(fs.instanceJSON))
	})
	mux.HandleFunc("/api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.form = r.PostForm
		w.Header().Set("X-RateLimit-Limit", "300")
		w.Header().Set("X-RateLimit-Remaining", "4")
		w.Header().Set("X-RateLimit-Reset", "2025-03-10T12:30:00.000Z")
		if fs.statusCode != http.StatusOK {
			w.WriteHeader(fs.statusCode)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"101","url":"https://m.example/@me/101","content":"<p>hi</p>"}`))
	})
	media := func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.uploads = append(fs.uploads, r.FormValue("description"))
		if fs.statusCode != http.StatusOK {
			w.WriteHeader(fs.statusCode)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"m1","type":"image"}`))
	}
	mux.HandleFunc("/api/v1/media", media)
	mux.HandleFunc("/api/v2/media", media)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) fail(code int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.statusCode = code
}

func TestAuthenticate(t *testing.T) {
	_, srv := newServer(t)
	ctx := context.Background()

	require.NoError(t, New(Config{BaseURL: srv.URL, AccessToken: "tok"}).Authenticate(ctx))
	assert.Error(t, New(Config{BaseURL: srv.URL, AccessToken: "bad"}).Authenticate(ctx))
}

func TestCharacterLimit(t *testing.T) {
	fs, srv := newServer(t)
	c := New(Config{BaseURL: srv.URL + "/", AccessToken: "tok"})

	n, err := c.CharacterLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000, n)

	fs.mu.Lock()
	fs.instanceJSON = `{"uri":"m.example","title":"M"}`
	fs.mu.Unlock()

	n, err = c.CharacterLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, transform.DefaultCharacterLimit, n)
}

func TestPublish(t *testing.T) {
	fs, srv := newServer(t)
	c := New(Config{BaseURL: srv.URL, AccessToken: "tok"})

	got, err := c.Publish(context.Background(), post.Draft{
		Text:        "hello",
		InReplyToID: "99",
		MediaIDs:    []string{"m1", "m2"},
		Sensitive:   true,
		SpoilerText: "nudity",
		Language:    "en",
	})
	require.NoError(t, err)

	assert.Equal(t, "101", got.ID)
	assert.Equal(t, "99", got.InReplyToID)
	assert.Equal(t, "https://m.example/@me/101", got.URL)

	fs.mu.Lock()
	form := fs.form
	fs.mu.Unlock()
	assert.Equal(t, []string{"hello"}, form["status"])
	assert.Equal(t, []string{"99"}, form["in_reply_to_id"])
	assert.Equal(t, []string{"m1", "m2"}, form["media_ids[]"])
	assert.Equal(t, []string{"true"}, form["sensitive"])
	assert.Equal(t, []string{"nudity"}, form["spoiler_text"])
	assert.Equal(t, []string{"en"}, form["language"])

	rl := c.RateLimit()
	assert.True(t, rl.Known)
	assert.Equal(t, 300, rl.Limit)
	assert.Equal(t, 4, rl.Remaining)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC), rl.Reset)
}

func TestPublish_ErrorClassification(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
		content   bool
	}{
		{http.StatusUnprocessableEntity, false, true},
		{http.StatusTooManyRequests, true, false},
		{http.StatusInternalServerError, false, false},
		{http.StatusBadGateway, false, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			fs, srv := newServer(t)
			fs.fail(tt.code)
			c := New(Config{BaseURL: srv.URL, AccessToken: "tok"})

			_, err := c.Publish(context.Background(), post.Draft{Text: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.transient, engine.IsTransientError(err))
			assert.Equal(t, tt.content, engine.IsContentError(err))
		})
	}
}

func TestPublish_DialFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, AccessToken: "tok"})
	_, err := c.Publish(context.Background(), post.Draft{Text: "x"})
	require.Error(t, err)
	assert.True(t, engine.IsTransientError(err))
}

func TestUploadMedia(t *testing.T) {
	fs, srv := newServer(t)
	c := New(Config{BaseURL: srv.URL, AccessToken: "tok"})

	id, err := c.UploadMedia(context.Background(), []byte("\x89PNG\r\n\x1a\n"), "image/png", "a cat")
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
	assert.Equal(t, []string{"a cat"}, fs.uploads)

	fs.fail(http.StatusUnprocessableEntity)
	_, err = c.UploadMedia(context.Background(), []byte("x"), "image/png", "")
	assert.True(t, engine.IsContentError(err))

	fs.fail(http.StatusServiceUnavailable)
	_, err = c.UploadMedia(context.Background(), []byte("x"), "image/png", "")
	assert.True(t, engine.IsTransientError(err))
}

func TestParseRateLimit(t *testing.T) {
	h := http.Header{}
	_, ok := parseRateLimit(h)
	assert.False(t, ok)

	h.Set("X-RateLimit-Remaining", "0")
	st, ok := parseRateLimit(h)
	require.True(t, ok)
	assert.Equal(t, 0, st.Remaining)
	assert.True(t, st.Reset.IsZero())
}
