// Package catalog ties the identifier codec, metadata lookup and name
// resolution into the operations the API and CLI expose.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/exlibris/internal/isbn"
	"github.com/justyntemme/exlibris/internal/matching"
	"github.com/justyntemme/exlibris/internal/metadata"
	"github.com/justyntemme/exlibris/internal/models"
)

// ErrIncompleteRecord is returned when a provider record has no title or no author
var ErrIncompleteRecord = errors.New("incomplete record")

// Lookup fetches a bibliographic record by ISBN
type Lookup interface {
	Lookup(ctx context.Context, raw string) (*metadata.LookupResult, error)
}

// Resolver maps names and titles onto catalog entities
type Resolver interface {
	ResolveAuthor(ctx context.Context, raw string) (matching.Match, error)
	ResolveWork(ctx context.Context, raw string) (matching.Match, error)
}

// BookSetStore persists book sets
type BookSetStore interface {
	CreateBookSet(ctx context.Context, b *models.BookSet) error
}

// Result is a provider record together with the catalog entities it resolved to
type Result struct {
	ISBN10 string                 `json:"isbn_10"`
	ISBN13 string                 `json:"isbn_13,omitempty"`
	Record *metadata.LookupResult `json:"record"`
	Author matching.Match         `json:"author"`
	Work   matching.Match         `json:"work"`
}

// Service runs ISBN lookups against the catalog
type Service struct {
	lookup   Lookup
	resolver Resolver
	sets     BookSetStore
	logger   *log.Logger
}

// NewService creates a catalog service
func NewService(lookup Lookup, resolver Resolver, sets BookSetStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		lookup:   lookup,
		resolver: resolver,
		sets:     sets,
		logger:   logger.With("component", "catalog"),
	}
}

// ConvertISBN validates raw and returns both forms. isbn13 is always set
// for valid input; isbn10 is empty for ISBN-13s outside the 978 range.
func ConvertISBN(raw string) (isbn10, isbn13 string, err error) {
	code := isbn.Normalize(raw)
	switch len(code) {
	case 10:
		isbn13, err = isbn.ISBN10To13(code)
		if err != nil {
			return "", "", err
		}
		return code, isbn13, nil
	case 13:
		isbn10, _, err = isbn.ISBN13To10(code)
		if err != nil {
			return "", "", err
		}
		return isbn10, code, nil
	default:
		return "", "", fmt.Errorf("%w: %q", isbn.ErrInvalidIdentifier, raw)
	}
}

// LookupISBN validates raw, fetches its record and resolves the record's
// author and title. Records without a title or author are rejected with
// ErrIncompleteRecord; otherwise a weak match resolves to the Unknown
// sentinels rather than failing.
func (s *Service) LookupISBN(ctx context.Context, raw string) (*Result, error) {
	isbn10, isbn13, err := ConvertISBN(raw)
	if err != nil {
		return nil, err
	}

	query := isbn.Normalize(raw)
	rec, err := s.lookup.Lookup(ctx, query)
	if err != nil {
		return nil, err
	}

	authorName := primaryAuthor(rec)
	if strings.TrimSpace(rec.Title) == "" || authorName == "" {
		s.logger.Warn("incomplete record", "isbn", query, "title", rec.Title, "author", rec.Author)
		return nil, fmt.Errorf("%w for ISBN %s", ErrIncompleteRecord, query)
	}

	author, err := s.resolver.ResolveAuthor(ctx, authorName)
	if err != nil {
		return nil, err
	}
	work, err := s.resolver.ResolveWork(ctx, rec.Title)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("resolved record", "isbn", query,
		"author", author.Name, "author_score", author.Score,
		"work", work.Name, "work_score", work.Score)

	if rec.ISBN10 == "" {
		rec.ISBN10 = isbn10
	}
	if rec.ISBN13 == "" {
		rec.ISBN13 = isbn13
	}

	return &Result{
		ISBN10: isbn10,
		ISBN13: isbn13,
		Record: rec,
		Author: author,
		Work:   work,
	}, nil
}

// primaryAuthor returns the first credited author, or the joined author
// string when the provider gave no list
func primaryAuthor(rec *metadata.LookupResult) string {
	for _, a := range rec.Authors {
		if a = strings.TrimSpace(a); a != "" {
			return a
		}
	}
	return strings.TrimSpace(rec.Author)
}

// CreateBookSet saves a book set. When it has an ISBN but no cover URL the
// cover URL is looked up first; lookup failures are logged and leave it empty.
func (s *Service) CreateBookSet(ctx context.Context, b *models.BookSet) error {
	b.Derive()
	if b.CoverURL == "" {
		code := b.ISBN13
		if code == "" {
			code = b.ISBN10
		}
		if code != "" {
			rec, err := s.lookup.Lookup(ctx, code)
			switch {
			case err != nil:
				s.logger.Warn("book set cover lookup failed", "isbn", code, "err", err)
			case rec.CoverURL != "":
				b.CoverURL = rec.CoverURL
			}
		}
	}
	return s.sets.CreateBookSet(ctx, b)
}
