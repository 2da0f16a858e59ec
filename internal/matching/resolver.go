package matching

import (
	"context"
	"fmt"
)

const (
	// AuthorThreshold is the minimum NameMatch score to accept an author
	AuthorThreshold = 90.0
	// WorkThreshold is the minimum TitleMatch score to accept a work
	WorkThreshold = 80.0
)

// Candidate is a catalog entity the resolver can return
type Candidate struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Key is the stored comparison key: an author's match name or a work's title
	Key string `json:"-"`
}

// Alias is an alternate spelling that points at an author
type Alias struct {
	Text   string
	Author Candidate
}

// Catalog is the read-only view of known authors and works.
// Implementations return rows in insertion (id) order.
type Catalog interface {
	AuthorAliases(ctx context.Context) ([]Alias, error)
	AuthorCandidates(ctx context.Context) ([]Candidate, error)
	WorkCandidates(ctx context.Context) ([]Candidate, error)
	UnknownAuthor(ctx context.Context) (Candidate, error)
	UnknownWork(ctx context.Context) (Candidate, error)
}

// Match is the result of a resolution
type Match struct {
	Candidate
	Score   float64 `json:"score"`
	Unknown bool    `json:"unknown"`
}

// Resolver maps free-text author names and titles onto catalog entities.
// Every lookup scans the full candidate list, which is fine for a
// personal collection but not for a large catalog.
type Resolver struct {
	catalog Catalog

	nameScore  func(a, b string) float64
	titleScore func(a, b string) float64
}

// NewResolver creates a resolver over the given catalog
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{
		catalog:    catalog,
		nameScore:  NameMatch,
		titleScore: TitleMatch,
	}
}

// ResolveAuthor returns the first alias or author scoring at least
// AuthorThreshold against raw, or the Unknown Author sentinel.
// An error is returned only when the catalog cannot be read.
func (r *Resolver) ResolveAuthor(ctx context.Context, raw string) (Match, error) {
	if raw == "" {
		return r.unknownAuthor(ctx)
	}

	target := NormalizeName(raw)

	aliases, err := r.catalog.AuthorAliases(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("failed to read aliases: %w", err)
	}
	for _, alias := range aliases {
		if score := r.nameScore(alias.Text, target); score >= AuthorThreshold {
			return r.matchedAuthor(ctx, alias.Author, score)
		}
	}

	authors, err := r.catalog.AuthorCandidates(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("failed to read authors: %w", err)
	}
	for _, author := range authors {
		if score := r.nameScore(author.Key, target); score >= AuthorThreshold {
			return r.matchedAuthor(ctx, author, score)
		}
	}

	return r.unknownAuthor(ctx)
}

// ResolveWork returns the best-scoring work when its score reaches
// WorkThreshold, or the Unknown Work sentinel. Ties keep the earliest work.
func (r *Resolver) ResolveWork(ctx context.Context, raw string) (Match, error) {
	if raw == "" {
		return r.unknownWork(ctx)
	}

	target := NormalizeTitle(raw)

	works, err := r.catalog.WorkCandidates(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("failed to read works: %w", err)
	}

	var best *Candidate
	var bestScore float64
	for i := range works {
		if score := r.titleScore(works[i].Key, target); score > bestScore {
			best = &works[i]
			bestScore = score
		}
	}

	if best != nil && bestScore >= WorkThreshold {
		return r.matchedWork(ctx, *best, bestScore)
	}
	return r.unknownWork(ctx)
}

// matchedAuthor flags a hit on the sentinel row itself as Unknown.
func (r *Resolver) matchedAuthor(ctx context.Context, c Candidate, score float64) (Match, error) {
	m, err := r.unknownAuthor(ctx)
	if err != nil {
		return Match{}, err
	}
	if c.ID != m.ID {
		return Match{Candidate: c, Score: score}, nil
	}
	m.Score = score
	return m, nil
}

func (r *Resolver) matchedWork(ctx context.Context, c Candidate, score float64) (Match, error) {
	m, err := r.unknownWork(ctx)
	if err != nil {
		return Match{}, err
	}
	if c.ID != m.ID {
		return Match{Candidate: c, Score: score}, nil
	}
	m.Score = score
	return m, nil
}

func (r *Resolver) unknownAuthor(ctx context.Context) (Match, error) {
	c, err := r.catalog.UnknownAuthor(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("failed to read unknown author: %w", err)
	}
	return Match{Candidate: c, Unknown: true}, nil
}

func (r *Resolver) unknownWork(ctx context.Context) (Match, error) {
	c, err := r.catalog.UnknownWork(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("failed to read unknown work: %w", err)
	}
	return Match{Candidate: c, Unknown: true}, nil
}
