package catalog

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/exlibris/internal/isbn"
	"github.com/justyntemme/exlibris/internal/matching"
	"github.com/justyntemme/exlibris/internal/metadata"
	"github.com/justyntemme/exlibris/internal/models"
	"github.com/justyntemme/exlibris/internal/storage"
)

type stubLookup struct {
	result *metadata.LookupResult
	err    error
	calls  []string
}

func (s *stubLookup) Lookup(ctx context.Context, raw string) (*metadata.LookupResult, error) {
	s.calls = append(s.calls, raw)
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.result
	return &copied, nil
}

type recordingSets struct {
	created []models.BookSet
}

func (r *recordingSets) CreateBookSet(ctx context.Context, b *models.BookSet) error {
	r.created = append(r.created, *b)
	return nil
}

func setupCatalog(t *testing.T) (*storage.Database, *matching.Resolver) {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, matching.NewResolver(db)
}

func TestConvertISBN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		isbn10   string
		isbn13   string
		expected error
	}{
		{"isbn10 with hyphens", "0-395-25730-1", "0395257301", "9780395257302", nil},
		{"isbn13", "978-0395257302", "0395257301", "9780395257302", nil},
		{"979 prefix has no isbn10", "9791234567896", "", "9791234567896", nil},
		{"too short", "12345", "", "", isbn.ErrInvalidIdentifier},
		{"letters", "ABCDEFGHIJ", "", "", isbn.ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i10, i13, err := ConvertISBN(tt.input)
			if tt.expected != nil {
				assert.ErrorIs(t, err, tt.expected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.isbn10, i10)
			assert.Equal(t, tt.isbn13, i13)
		})
	}
}

func TestLookupISBNResolvesAgainstCatalog(t *testing.T) {
	db, resolver := setupCatalog(t)
	ctx := context.Background()

	author := &models.Author{FullName: "J. R. R. Tolkien"}
	require.NoError(t, db.CreateAuthor(ctx, author))
	work := &models.Work{Title: "The Hobbit", AuthorID: author.ID}
	require.NoError(t, db.CreateWork(ctx, work))

	lookup := &stubLookup{result: &metadata.LookupResult{
		Title:   "The Hobbit!",
		Author:  "Tolkien, J. R. R.",
		Authors: []string{"Tolkien, J. R. R."},
	}}
	svc := NewService(lookup, resolver, db, log.New(io.Discard))

	res, err := svc.LookupISBN(ctx, "0-395-25730-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"0395257301"}, lookup.calls)
	assert.Equal(t, "0395257301", res.ISBN10)
	assert.Equal(t, "9780395257302", res.ISBN13)
	assert.Equal(t, "9780395257302", res.Record.ISBN13)
	assert.Equal(t, author.ID, res.Author.ID)
	assert.False(t, res.Author.Unknown)
	assert.Equal(t, work.ID, res.Work.ID)
	assert.False(t, res.Work.Unknown)
}

func TestLookupISBNFallsBackToSentinels(t *testing.T) {
	_, resolver := setupCatalog(t)

	lookup := &stubLookup{result: &metadata.LookupResult{
		Title:   "Totally Unmatched Title",
		Author:  "Totally Unmatched Name Zzz",
		Authors: []string{"Totally Unmatched Name Zzz"},
	}}
	svc := NewService(lookup, resolver, &recordingSets{}, log.New(io.Discard))

	res, err := svc.LookupISBN(context.Background(), "9780395257302")
	require.NoError(t, err)
	assert.True(t, res.Author.Unknown)
	assert.Equal(t, models.UnknownAuthorName, res.Author.Name)
	assert.True(t, res.Work.Unknown)
	assert.Equal(t, models.UnknownWorkTitle, res.Work.Name)
}

func TestLookupISBNResolvesFirstAuthor(t *testing.T) {
	db, resolver := setupCatalog(t)
	ctx := context.Background()

	pratchett := &models.Author{FullName: "Terry Pratchett"}
	require.NoError(t, db.CreateAuthor(ctx, pratchett))

	lookup := &stubLookup{result: &metadata.LookupResult{
		Title:   "Good Omens",
		Author:  "Terry Pratchett, Neil Gaiman",
		Authors: []string{"Terry Pratchett", "Neil Gaiman"},
	}}
	svc := NewService(lookup, resolver, db, log.New(io.Discard))

	res, err := svc.LookupISBN(ctx, "0060853980")
	require.NoError(t, err)
	assert.Equal(t, pratchett.ID, res.Author.ID)
}

func TestLookupISBNErrors(t *testing.T) {
	_, resolver := setupCatalog(t)

	tests := []struct {
		name     string
		input    string
		lookup   *stubLookup
		expected error
	}{
		{"invalid identifier", "123", &stubLookup{}, isbn.ErrInvalidIdentifier},
		{"not found", "9780395257302", &stubLookup{err: metadata.ErrNotFound}, metadata.ErrNotFound},
		{"provider error", "9780395257302", &stubLookup{err: metadata.StatusError("google_books", "lookup", 500)}, metadata.ErrProvider},
		{"missing author", "9780395257302", &stubLookup{result: &metadata.LookupResult{Title: "The Hobbit"}}, ErrIncompleteRecord},
		{"missing title", "9780395257302", &stubLookup{result: &metadata.LookupResult{Author: "J. R. R. Tolkien"}}, ErrIncompleteRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.lookup, resolver, &recordingSets{}, log.New(io.Discard))
			_, err := svc.LookupISBN(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestCreateBookSetLooksUpCover(t *testing.T) {
	tests := []struct {
		name        string
		set         models.BookSet
		lookup      *stubLookup
		expectedURL string
		lookups     int
	}{
		{
			name:        "fills cover from isbn13",
			set:         models.BookSet{Title: "Narnia", ISBN10: "0060447478"},
			lookup:      &stubLookup{result: &metadata.LookupResult{CoverURL: "https://example.com/narnia.jpg"}},
			expectedURL: "https://example.com/narnia.jpg",
			lookups:     1,
		},
		{
			name:        "keeps existing cover",
			set:         models.BookSet{Title: "Narnia", ISBN13: "9780060447471", CoverURL: "https://example.com/mine.jpg"},
			lookup:      &stubLookup{result: &metadata.LookupResult{CoverURL: "https://example.com/other.jpg"}},
			expectedURL: "https://example.com/mine.jpg",
		},
		{
			name:   "no isbn",
			set:    models.BookSet{Title: "Loose pamphlets"},
			lookup: &stubLookup{},
		},
		{
			name:    "lookup failure is not fatal",
			set:     models.BookSet{Title: "Narnia", ISBN13: "9780060447471"},
			lookup:  &stubLookup{err: errors.New("boom")},
			lookups: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets := &recordingSets{}
			svc := NewService(tt.lookup, nil, sets, log.New(io.Discard))

			set := tt.set
			require.NoError(t, svc.CreateBookSet(context.Background(), &set))
			require.Len(t, sets.created, 1)
			assert.Equal(t, tt.expectedURL, sets.created[0].CoverURL)
			assert.Len(t, tt.lookup.calls, tt.lookups)
			if tt.lookups > 0 {
				assert.Equal(t, "9780060447471", tt.lookup.calls[0])
			}
		})
	}
}
