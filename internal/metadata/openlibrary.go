package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenLibraryProvider implements the Provider interface for Open Library API
type OpenLibraryProvider struct {
	client  *http.Client
	baseURL string
}

// NewOpenLibraryProvider creates a new Open Library provider
func NewOpenLibraryProvider(timeout time.Duration, opts ...Option) *OpenLibraryProvider {
	cfg := newClientConfig("https://openlibrary.org", timeout, opts)
	return &OpenLibraryProvider{
		client:  cfg.client,
		baseURL: cfg.baseURL,
	}
}

// Name returns the provider identifier
func (p *OpenLibraryProvider) Name() string {
	return "openlibrary"
}

// olBook matches one entry of api/books?jscmd=data
type olBook struct {
	Title         string      `json:"title"`
	Subtitle      string      `json:"subtitle"`
	Authors       []olNamed   `json:"authors"`
	Publishers    []olNamed   `json:"publishers"`
	PublishDate   string      `json:"publish_date"`
	NumberOfPages int         `json:"number_of_pages"`
	Subjects      []olNamed   `json:"subjects"`
	Identifiers   olIdents    `json:"identifiers"`
	Cover         olCover     `json:"cover"`
	Notes         any         `json:"notes"` // Can be string or {type, value}
	Languages     []olLangRef `json:"languages"`
}

type olNamed struct {
	Name string `json:"name"`
}

type olIdents struct {
	ISBN10 []string `json:"isbn_10"`
	ISBN13 []string `json:"isbn_13"`
}

type olCover struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type olLangRef struct {
	Key string `json:"key"`
}

// LookupByISBN fetches api/books for a single ISBN bibkey
func (p *OpenLibraryProvider) LookupByISBN(ctx context.Context, isbn string) (*LookupResult, error) {
	bibkey := "ISBN:" + isbn
	params := url.Values{}
	params.Set("bibkeys", bibkey)
	params.Set("jscmd", "data")
	params.Set("format", "json")

	reqURL := fmt.Sprintf("%s/api/books?%s", p.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Op: "lookup", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Op: "lookup", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, StatusError(p.Name(), "lookup", resp.StatusCode)
	}

	var data map[string]olBook
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}

	book, ok := data[bibkey]
	if !ok {
		return nil, ErrNotFound
	}
	return p.convertBook(&book), nil
}

// convertBook converts an Open Library book to LookupResult
func (p *OpenLibraryProvider) convertBook(b *olBook) *LookupResult {
	authors := names(b.Authors)
	result := &LookupResult{
		Title:         b.Title,
		Subtitle:      b.Subtitle,
		Author:        strings.Join(authors, ", "),
		Authors:       authors,
		Publisher:     firstOrEmpty(names(b.Publishers)),
		PublishedDate: b.PublishDate,
		PageCount:     b.NumberOfPages,
		ISBN10:        firstOrEmpty(b.Identifiers.ISBN10),
		ISBN13:        firstOrEmpty(b.Identifiers.ISBN13),
		Categories:    names(b.Subjects),
		Source:        p.Name(),
	}

	// Limit subjects
	if len(result.Categories) > 5 {
		result.Categories = result.Categories[:5]
	}

	if len(b.Languages) > 0 {
		result.Language = strings.TrimPrefix(b.Languages[0].Key, "/languages/")
	}

	// Handle notes (can be string or object)
	switch notes := b.Notes.(type) {
	case string:
		result.Description = notes
	case map[string]any:
		if val, ok := notes["value"].(string); ok {
			result.Description = val
		}
	}

	switch {
	case b.Cover.Medium != "":
		result.CoverURL = b.Cover.Medium
	case b.Cover.Large != "":
		result.CoverURL = b.Cover.Large
	default:
		result.CoverURL = b.Cover.Small
	}

	return result
}

func names(items []olNamed) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Name != "" {
			out = append(out, item.Name)
		}
	}
	return out
}
