package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/whotalks/internal/safe"
	"github.com/coral-mesh/whotalks/internal/sockets"
)

// LoadToken reads the API token file. A missing file yields an error
// wrapping both ErrNoToken and the underlying fs error.
func LoadToken(path string) (string, error) {
	if path == "" {
		return "", ErrNoToken
	}
	token, err := safe.ReadSecret(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}
	return token, nil
}

// Enricher memoizes geolocation lookups for one run. A nil Lookuper makes
// a disabled enricher whose lookups all return an empty Location.
type Enricher struct {
	lookuper Lookuper
	cache    *Cache
	logger   zerolog.Logger
}

// NewEnricher creates an enricher with its own cache.
func NewEnricher(lookuper Lookuper, logger zerolog.Logger) *Enricher {
	return &Enricher{
		lookuper: lookuper,
		cache:    NewCache(),
		logger:   logger.With().Str("component", "geo").Logger(),
	}
}

// Enabled reports whether lookups reach a backend.
func (e *Enricher) Enabled() bool {
	return e != nil && e.lookuper != nil
}

// Cache exposes the run-scoped cache.
func (e *Enricher) Cache() *Cache {
	return e.cache
}

// Locate returns the location of addr. Listening keys, a disabled enricher
// and failed lookups all yield an empty Location; failures are cached so the
// same address is not retried during the run.
func (e *Enricher) Locate(ctx context.Context, addr string) Location {
	if !e.Enabled() || sockets.IsListeningKey(addr) || addr == "" {
		return Location{}
	}

	if loc, ok := e.cache.Get(addr); ok {
		return loc
	}

	loc, err := e.lookuper.Lookup(ctx, addr)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.logger.Debug().Err(err).Str("addr", addr).Msg("Geolocation unavailable")
		}
		loc = Location{}
	}

	return e.cache.Put(addr, loc)
}

// LocateAll looks up distinct addresses with at most concurrency lookups in
// flight and returns the results keyed by address.
func (e *Enricher) LocateAll(ctx context.Context, addrs []string, concurrency int) map[string]Location {
	result := make(map[string]Location, len(addrs))
	if !e.Enabled() {
		return result
	}
	if concurrency < 1 {
		concurrency = 1
	}

	unique := make([]string, 0, len(addrs))
	seen := make(map[string]bool, len(addrs))
	for _, addr := range addrs {
		if seen[addr] || sockets.IsListeningKey(addr) {
			continue
		}
		seen[addr] = true
		unique = append(unique, addr)
	}

	locations := make([]Location, len(unique))
	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i, addr := range unique {
		g.Go(func() error {
			locations[i] = e.Locate(ctx, addr)
			return nil
		})
	}
	_ = g.Wait()

	for i, addr := range unique {
		result[addr] = locations[i]
	}
	return result
}
