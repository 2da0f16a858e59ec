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

// GoogleBooksProvider implements the Provider interface for the Google Books volumes API
type GoogleBooksProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewGoogleBooksProvider creates a Google Books provider. An empty apiKey
// sends anonymous requests, which Google throttles more aggressively.
func NewGoogleBooksProvider(apiKey string, timeout time.Duration, opts ...Option) *GoogleBooksProvider {
	cfg := newClientConfig("https://www.googleapis.com/books/v1", timeout, opts)
	return &GoogleBooksProvider{
		client:  cfg.client,
		baseURL: cfg.baseURL,
		apiKey:  apiKey,
	}
}

// Name returns the provider identifier
func (p *GoogleBooksProvider) Name() string {
	return "googlebooks"
}

type gbResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []gbItem `json:"items"`
}

type gbItem struct {
	VolumeInfo gbVolumeInfo `json:"volumeInfo"`
}

type gbVolumeInfo struct {
	Title               string         `json:"title"`
	Subtitle            string         `json:"subtitle"`
	Authors             []string       `json:"authors"`
	Publisher           string         `json:"publisher"`
	PublishedDate       string         `json:"publishedDate"`
	Description         string         `json:"description"`
	IndustryIdentifiers []gbIdentifier `json:"industryIdentifiers"`
	PageCount           int            `json:"pageCount"`
	Categories          []string       `json:"categories"`
	ImageLinks          *gbImageLinks  `json:"imageLinks"`
	Language            string         `json:"language"`
}

type gbIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type gbImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}

// LookupByISBN queries volumes?q=isbn:<isbn> and maps the first item
func (p *GoogleBooksProvider) LookupByISBN(ctx context.Context, isbn string) (*LookupResult, error) {
	params := url.Values{}
	params.Set("q", "isbn:"+isbn)
	if p.apiKey != "" {
		params.Set("key", p.apiKey)
	}

	reqURL := fmt.Sprintf("%s/volumes?%s", p.baseURL, params.Encode())
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

	var data gbResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}

	if data.TotalItems == 0 || len(data.Items) == 0 {
		return nil, ErrNotFound
	}

	return p.convertVolume(&data.Items[0].VolumeInfo), nil
}

// convertVolume converts a volumeInfo object to LookupResult
func (p *GoogleBooksProvider) convertVolume(v *gbVolumeInfo) *LookupResult {
	result := &LookupResult{
		Title:         v.Title,
		Subtitle:      v.Subtitle,
		Author:        strings.Join(v.Authors, ", "),
		Authors:       v.Authors,
		Publisher:     v.Publisher,
		PublishedDate: v.PublishedDate,
		PageCount:     v.PageCount,
		Description:   v.Description,
		Categories:    v.Categories,
		Language:      v.Language,
		Source:        p.Name(),
	}

	if v.ImageLinks != nil {
		result.CoverURL = v.ImageLinks.Thumbnail
	}

	// First identifier of each type wins
	for _, id := range v.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			if result.ISBN10 == "" {
				result.ISBN10 = id.Identifier
			}
		case "ISBN_13":
			if result.ISBN13 == "" {
				result.ISBN13 = id.Identifier
			}
		}
	}

	return result
}
