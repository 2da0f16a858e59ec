package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/justyntemme/exlibris/internal/isbn"
)

// Service orchestrates metadata lookups across providers
type Service struct {
	primary  Provider
	fallback Provider
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewService creates a metadata service with primary and fallback providers.
// Outbound calls are limited to 2 per second until SetRateLimit is called.
func NewService(primary, fallback Provider, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		primary:  primary,
		fallback: fallback,
		limiter:  rate.NewLimiter(rate.Limit(2), 1),
		logger:   logger.With("component", "metadata"),
	}
}

// SetRateLimit changes the outbound request rate. A non-positive rps disables limiting.
func (s *Service) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		s.limiter.SetLimit(rate.Inf)
		return
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter.SetLimit(rate.Limit(rps))
	s.limiter.SetBurst(burst)
}

// Lookup normalizes raw and fetches its record from the primary provider.
// The fallback is consulted only when the primary reports ErrNotFound; a
// provider error is returned as is.
func (s *Service) Lookup(ctx context.Context, raw string) (*LookupResult, error) {
	code := isbn.Normalize(raw)
	if len(code) != 10 && len(code) != 13 {
		return nil, fmt.Errorf("%w: %q", isbn.ErrInvalidIdentifier, raw)
	}

	result, err := s.lookup(ctx, s.primary, code)
	if errors.Is(err, ErrNotFound) && s.fallback != nil {
		s.logger.Debug("primary provider has no record, trying fallback",
			"isbn", code, "primary", s.primary.Name(), "fallback", s.fallback.Name())
		result, err = s.lookup(ctx, s.fallback, code)
	}
	if err != nil {
		return nil, err
	}

	result.ISBN10, result.ISBN13 = isbn.Backfill(isbn.Normalize(result.ISBN10), isbn.Normalize(result.ISBN13))
	return result, nil
}

func (s *Service) lookup(ctx context.Context, p Provider, code string) (*LookupResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := p.LookupByISBN(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.Info("no record", "provider", p.Name(), "isbn", code)
		return nil, err
	case err != nil:
		s.logger.Warn("lookup failed", "provider", p.Name(), "isbn", code, "err", err)
		return nil, err
	}

	s.logger.Debug("lookup succeeded", "provider", p.Name(), "isbn", code, "title", result.Title)
	return result, nil
}
