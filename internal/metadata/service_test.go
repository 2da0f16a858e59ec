package metadata

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/exlibris/internal/isbn"
)

type stubProvider struct {
	name   string
	result *LookupResult
	err    error
	calls  []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) LookupByISBN(ctx context.Context, code string) (*LookupResult, error) {
	s.calls = append(s.calls, code)
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	return &r, nil
}

func newTestService(primary, fallback Provider) *Service {
	svc := NewService(primary, fallback, log.New(io.Discard))
	svc.SetRateLimit(0, 0)
	return svc
}

func TestServiceLookupPrimary(t *testing.T) {
	primary := &stubProvider{name: "primary", result: &LookupResult{Title: "The Hobbit", ISBN13: "9780395257302"}}
	fallback := &stubProvider{name: "fallback", result: &LookupResult{Title: "Wrong"}}
	svc := newTestService(primary, fallback)

	result, err := svc.Lookup(context.Background(), "978-0-395-25730-2")
	require.NoError(t, err)

	assert.Equal(t, "The Hobbit", result.Title)
	assert.Equal(t, "0395257301", result.ISBN10, "missing ISBN-10 is backfilled")
	assert.Equal(t, []string{"9780395257302"}, primary.calls)
	assert.Empty(t, fallback.calls)
}

func TestServiceFallbackOnlyOnNotFound(t *testing.T) {
	tests := []struct {
		name         string
		primaryErr   error
		wantErr      error
		wantFallback bool
		wantTitle    string
	}{
		{"not found uses fallback", ErrNotFound, nil, true, "From Fallback"},
		{"provider error is terminal", &ProviderError{Provider: "primary", Op: "lookup", StatusCode: 500}, ErrProvider, false, ""},
		{"rate limit is terminal", StatusError("primary", "lookup", 429), ErrRateLimited, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &stubProvider{name: "primary", err: tt.primaryErr}
			fallback := &stubProvider{name: "fallback", result: &LookupResult{Title: "From Fallback"}}
			svc := newTestService(primary, fallback)

			result, err := svc.Lookup(context.Background(), "0395257301")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTitle, result.Title)
			}
			assert.Equal(t, tt.wantFallback, len(fallback.calls) == 1)
		})
	}
}

func TestServiceNotFoundWithoutFallback(t *testing.T) {
	svc := newTestService(&stubProvider{name: "primary", err: ErrNotFound}, nil)

	_, err := svc.Lookup(context.Background(), "0395257301")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceRejectsMalformedISBN(t *testing.T) {
	primary := &stubProvider{name: "primary", result: &LookupResult{}}
	svc := newTestService(primary, nil)

	_, err := svc.Lookup(context.Background(), "12345")
	assert.ErrorIs(t, err, isbn.ErrInvalidIdentifier)
	assert.Empty(t, primary.calls)
}

func TestServiceRateLimitHonorsContext(t *testing.T) {
	primary := &stubProvider{name: "primary", result: &LookupResult{Title: "x"}}
	svc := NewService(primary, nil, log.New(io.Discard))
	svc.SetRateLimit(0.001, 1)

	_, err := svc.Lookup(context.Background(), "0395257301")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Lookup(ctx, "0395257301")
	assert.Error(t, err)
	assert.Len(t, primary.calls, 1)
}
