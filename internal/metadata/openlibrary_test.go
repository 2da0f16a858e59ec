package metadata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const earthseaBook = `{
  "ISBN:9780547773742": {
    "title": "A Wizard of Earthsea",
    "authors": [{"url": "https://openlibrary.org/authors/OL29003A", "name": "Ursula K. Le Guin"}],
    "publishers": [{"name": "Houghton Mifflin Harcourt"}, {"name": "Graphia"}],
    "publish_date": "2012",
    "number_of_pages": 264,
    "identifiers": {"isbn_10": ["0547773749"], "isbn_13": ["9780547773742"]},
    "cover": {"small": "https://covers.openlibrary.org/b/id/1-S.jpg", "medium": "https://covers.openlibrary.org/b/id/1-M.jpg"},
    "subjects": [{"name": "Wizards"}, {"name": "Magic"}, {"name": "Fantasy"}, {"name": "Islands"}, {"name": "Dragons"}, {"name": "Fiction"}],
    "notes": {"type": "/type/text", "value": "Earthsea cycle, book one."},
    "languages": [{"key": "/languages/eng"}]
  }
}`

func TestOpenLibraryProviderName(t *testing.T) {
	provider := NewOpenLibraryProvider(time.Second)
	assert.Equal(t, "openlibrary", provider.Name())
}

func TestOpenLibraryLookupByISBN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books", r.URL.Path)
		assert.Equal(t, "ISBN:9780547773742", r.URL.Query().Get("bibkeys"))
		assert.Equal(t, "data", r.URL.Query().Get("jscmd"))
		io.WriteString(w, earthseaBook)
	}))
	defer srv.Close()

	p := NewOpenLibraryProvider(5*time.Second, WithBaseURL(srv.URL+"/"))
	result, err := p.LookupByISBN(context.Background(), "9780547773742")
	require.NoError(t, err)

	assert.Equal(t, "A Wizard of Earthsea", result.Title)
	assert.Equal(t, "Ursula K. Le Guin", result.Author)
	assert.Equal(t, "Houghton Mifflin Harcourt", result.Publisher)
	assert.Equal(t, "2012", result.PublishedDate)
	assert.Equal(t, 264, result.PageCount)
	assert.Equal(t, "0547773749", result.ISBN10)
	assert.Equal(t, "9780547773742", result.ISBN13)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/1-M.jpg", result.CoverURL)
	assert.Len(t, result.Categories, 5) // Limited to 5
	assert.Equal(t, "Earthsea cycle, book one.", result.Description)
	assert.Equal(t, "eng", result.Language)
	assert.Equal(t, "openlibrary", result.Source)
}

func TestOpenLibraryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	p := NewOpenLibraryProvider(5*time.Second, WithBaseURL(srv.URL))
	_, err := p.LookupByISBN(context.Background(), "9780000000002")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenLibraryStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewOpenLibraryProvider(5*time.Second, WithBaseURL(srv.URL))
	_, err := p.LookupByISBN(context.Background(), "9780000000002")
	assert.ErrorIs(t, err, ErrProvider)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestConvertBookNotesString(t *testing.T) {
	p := NewOpenLibraryProvider(time.Second)

	result := p.convertBook(&olBook{
		Title: "Test Book",
		Notes: "Plain notes",
		Cover: olCover{Large: "https://example.com/L.jpg"},
	})

	assert.Equal(t, "Plain notes", result.Description)
	assert.Equal(t, "https://example.com/L.jpg", result.CoverURL)
	assert.Empty(t, result.Author)
}

func TestFirstOrEmpty(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected string
	}{
		{"empty slice", []string{}, ""},
		{"nil slice", nil, ""},
		{"single element", []string{"first"}, "first"},
		{"multiple elements", []string{"first", "second", "third"}, "first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := firstOrEmpty(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
