package metadata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hobbitVolume = `{
  "totalItems": 1,
  "items": [{
    "volumeInfo": {
      "title": "The Hobbit",
      "subtitle": "Or There and Back Again",
      "authors": ["J.R.R. Tolkien", "Christopher Tolkien"],
      "publisher": "Houghton Mifflin",
      "publishedDate": "1978-05",
      "description": "A hobbit goes on an adventure.",
      "industryIdentifiers": [
        {"type": "OTHER", "identifier": "UOM:39015"},
        {"type": "ISBN_10", "identifier": "0395257301"},
        {"type": "ISBN_13", "identifier": "9780395257302"},
        {"type": "ISBN_13", "identifier": "9999999999999"}
      ],
      "pageCount": 287,
      "categories": ["Fiction"],
      "imageLinks": {
        "smallThumbnail": "http://books.google.com/small",
        "thumbnail": "http://books.google.com/thumb"
      },
      "language": "en"
    }
  }]
}`

func newGoogleServer(t *testing.T, status int, body string) (*httptest.Server, *url.URL) {
	t.Helper()
	seen := new(url.URL)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = *r.URL
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestGoogleBooksLookupByISBN(t *testing.T) {
	srv, seen := newGoogleServer(t, http.StatusOK, hobbitVolume)
	p := NewGoogleBooksProvider("secret", 5*time.Second, WithBaseURL(srv.URL))

	result, err := p.LookupByISBN(context.Background(), "9780395257302")
	require.NoError(t, err)

	assert.Equal(t, "/volumes", seen.Path)
	assert.Equal(t, "isbn:9780395257302", seen.Query().Get("q"))
	assert.Equal(t, "secret", seen.Query().Get("key"))

	assert.Equal(t, "The Hobbit", result.Title)
	assert.Equal(t, "Or There and Back Again", result.Subtitle)
	assert.Equal(t, "J.R.R. Tolkien, Christopher Tolkien", result.Author)
	assert.Equal(t, "Houghton Mifflin", result.Publisher)
	assert.Equal(t, "1978-05", result.PublishedDate)
	assert.Equal(t, 287, result.PageCount)
	assert.Equal(t, "http://books.google.com/thumb", result.CoverURL)
	assert.Equal(t, "0395257301", result.ISBN10)
	assert.Equal(t, "9780395257302", result.ISBN13)
	assert.Equal(t, "A hobbit goes on an adventure.", result.Description)
	assert.Equal(t, "googlebooks", result.Source)

	published, ok := result.PublishedOn()
	assert.True(t, ok)
	assert.Equal(t, time.Date(1978, time.May, 1, 0, 0, 0, 0, time.UTC), published)
}

func TestGoogleBooksOmitsEmptyKey(t *testing.T) {
	srv, seen := newGoogleServer(t, http.StatusOK, hobbitVolume)
	p := NewGoogleBooksProvider("", 5*time.Second, WithBaseURL(srv.URL))

	_, err := p.LookupByISBN(context.Background(), "9780395257302")
	require.NoError(t, err)
	assert.False(t, seen.Query().Has("key"))
}

func TestGoogleBooksMissingImageLinks(t *testing.T) {
	body := `{"totalItems": 1, "items": [{"volumeInfo": {"title": "Plain", "authors": ["A. Writer"]}}]}`
	srv, _ := newGoogleServer(t, http.StatusOK, body)
	p := NewGoogleBooksProvider("", 5*time.Second, WithBaseURL(srv.URL))

	result, err := p.LookupByISBN(context.Background(), "0395257301")
	require.NoError(t, err)
	assert.Empty(t, result.CoverURL)
	assert.Empty(t, result.ISBN10)
	assert.Equal(t, "A. Writer", result.Author)
}

func TestGoogleBooksErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantStatus int
	}{
		{"zero results", http.StatusOK, `{"totalItems": 0}`, ErrNotFound, 0},
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrRateLimited, http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError, `oops`, ErrProvider, http.StatusInternalServerError},
		{"bad json", http.StatusOK, `{"totalItems": `, ErrProvider, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGoogleServer(t, tt.status, tt.body)
			p := NewGoogleBooksProvider("", 5*time.Second, WithBaseURL(srv.URL))

			_, err := p.LookupByISBN(context.Background(), "9780395257302")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var perr *ProviderError
			if tt.wantStatus != 0 {
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, tt.wantStatus, perr.StatusCode)
				assert.Equal(t, "googlebooks", perr.Provider)
			} else {
				assert.False(t, errors.As(err, &perr))
			}
		})
	}
}

func TestGoogleBooksTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, hobbitVolume)
	}))
	defer srv.Close()

	p := NewGoogleBooksProvider("", 50*time.Millisecond, WithBaseURL(srv.URL))
	_, err := p.LookupByISBN(context.Background(), "9780395257302")
	assert.ErrorIs(t, err, ErrProvider)
	assert.NotErrorIs(t, err, ErrNotFound)
}
