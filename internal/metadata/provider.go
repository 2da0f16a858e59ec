package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Common errors
var (
	ErrNotFound    = errors.New("no matching metadata found")
	ErrRateLimited = errors.New("rate limited by provider")
	ErrProvider    = errors.New("metadata provider unavailable")
)

// ProviderError describes a network, HTTP or decoding failure talking to
// an external provider. It matches ErrProvider under errors.Is.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// StatusError builds the ProviderError for an unexpected HTTP status
func StatusError(provider, op string, status int) *ProviderError {
	err := fmt.Errorf("unexpected status: %d", status)
	if status == http.StatusTooManyRequests {
		err = ErrRateLimited
	}
	return &ProviderError{Provider: provider, Op: op, StatusCode: status, Err: err}
}

// LookupResult is a bibliographic record mapped from a provider response
type LookupResult struct {
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Author        string   `json:"author"`
	Authors       []string `json:"authors,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	ISBN10        string   `json:"isbn_10,omitempty"`
	ISBN13        string   `json:"isbn_13,omitempty"`
	Description   string   `json:"description,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Language      string   `json:"language,omitempty"`
	Source        string   `json:"source"`
}

// PublishedOn parses PublishedDate
func (r *LookupResult) PublishedOn() (time.Time, bool) {
	return ParsePublishedDate(r.PublishedDate)
}

// Provider defines the interface for metadata lookup services
type Provider interface {
	// Name returns the provider identifier (e.g., "googlebooks", "openlibrary")
	Name() string

	// LookupByISBN fetches the record for a normalized ISBN (10 or 13).
	// Zero results is ErrNotFound; transport failures are *ProviderError.
	LookupByISBN(ctx context.Context, isbn string) (*LookupResult, error)
}

// Option configures the HTTP side of a provider
type Option func(*clientConfig)

type clientConfig struct {
	client  *http.Client
	baseURL string
}

// WithHTTPClient replaces the provider's HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.client = c
	}
}

// WithBaseURL points the provider at a different host, e.g. a test server
func WithBaseURL(u string) Option {
	return func(cfg *clientConfig) {
		cfg.baseURL = strings.TrimRight(u, "/")
	}
}

func newClientConfig(baseURL string, timeout time.Duration, opts []Option) clientConfig {
	cfg := clientConfig{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// firstOrEmpty returns the first element or empty string
func firstOrEmpty(s []string) string {
	if len(s) > 0 {
		return s[0]
	}
	return ""
}
