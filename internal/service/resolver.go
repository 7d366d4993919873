package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/meridian/internal/cache"
	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/metrics"
	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/UnknownOlympus/meridian/internal/quota"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	// providerCallTimeout bounds a single adapter call. A timed-out
	// provider is treated the same as any other provider failure.
	providerCallTimeout = 10 * time.Second

	// minReverseDisplayLen rejects reverse results whose display string is
	// too short to be a usable address.
	minReverseDisplayLen = 10

	// forwardShortCircuit stops the forward provider chain once a result
	// scores above it. Forward geocoding is used interactively, so latency
	// wins over squeezing out a marginally better candidate.
	forwardShortCircuit = 0.8

	// fallbackConfidence marks the synthesized coordinate-only result.
	fallbackConfidence = 0.1
)

// ErrInvalidInput is returned for out-of-range coordinates or an empty
// address, before any provider is contacted.
var ErrInvalidInput = errors.New("invalid geocoding input")

// Resolver composes the provider chain, quota tracker, result cache,
// scorer, and formatter into the two public resolution operations. It is
// the only type callers interact with.
type Resolver struct {
	log       *slog.Logger
	providers []geocoding.Adapter
	quota     *quota.Tracker
	cache     *cache.Cache
	scorer    *Scorer
	formatter *Formatter
	metrics   *metrics.Metrics
	clock     clockwork.Clock
}

// NewResolver creates a resolver over the given ordered provider chain.
// Providers are consulted in slice order: the free provider first, then
// commercial backends by ascending restriction.
func NewResolver(
	log *slog.Logger,
	providers []geocoding.Adapter,
	tracker *quota.Tracker,
	resultCache *cache.Cache,
	scorer *Scorer,
	formatter *Formatter,
	appMetrics *metrics.Metrics,
) *Resolver {
	return &Resolver{
		log:       log,
		providers: providers,
		quota:     tracker,
		cache:     resultCache,
		scorer:    scorer,
		formatter: formatter,
		metrics:   appMetrics,
		clock:     clockwork.NewRealClock(),
	}
}

// WithClock replaces the resolver's time source. Used by tests to pin
// resolution timestamps.
func (r *Resolver) WithClock(clock clockwork.Clock) *Resolver {
	r.clock = clock
	return r
}

// candidate pairs a valid raw result with its confidence score.
type candidate struct {
	raw   *models.RawGeoResult
	score float64
}

// ReverseGeocode resolves a coordinate pair to the best available address.
// It never fails past input validation: when every provider is skipped,
// errors out, or returns garbage, it synthesizes a low-confidence result
// whose display string is the formatted coordinates, so callers always
// have something to show.
func (r *Resolver) ReverseGeocode(ctx context.Context, lat, lng float64) (*models.ResolvedAddress, error) {
	if math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		r.metrics.Resolutions.WithLabelValues(string(models.DirectionReverse), "invalid").Inc()
		return nil, fmt.Errorf("%w: coordinates (%f, %f) out of range", ErrInvalidInput, lat, lng)
	}

	r.metrics.ActiveLookups.Inc()
	defer r.metrics.ActiveLookups.Dec()

	if cached, hit, err := r.cache.GetReverse(ctx, lat, lng); err != nil {
		r.log.WarnContext(ctx, "Result cache read failed", "error", err, "lat", lat, "lng", lng)
	} else if hit {
		r.metrics.CacheLookups.WithLabelValues(string(models.DirectionReverse), "hit").Inc()
		return cached, nil
	}
	r.metrics.CacheLookups.WithLabelValues(string(models.DirectionReverse), "miss").Inc()

	best := r.reverseFanOut(ctx, lat, lng)
	if best == nil {
		r.metrics.Resolutions.WithLabelValues(string(models.DirectionReverse), "fallback").Inc()
		r.log.WarnContext(ctx, "No provider yielded a usable reverse result, synthesizing fallback",
			"lat", lat, "lng", lng)
		// Fallback results are not cached so the next request retries.
		return r.synthesizeFallback(lat, lng), nil
	}

	resolved := r.buildResolved(best, models.DirectionReverse, lat, lng)
	if err := r.cache.PutReverse(ctx, lat, lng, resolved); err != nil {
		r.log.WarnContext(ctx, "Failed to cache reverse result", "error", err)
	}

	r.metrics.Resolutions.WithLabelValues(string(models.DirectionReverse), "resolved").Inc()
	r.log.InfoContext(ctx, "Reverse geocoding resolved",
		"provider", resolved.Source,
		"confidence", resolved.Confidence,
		"address", resolved.DisplayName)

	return resolved, nil
}

// ForwardGeocode resolves a free-text address to coordinates. The boolean
// reports whether any provider produced a usable result; false means the
// caller should fall back to manual location entry. Unlike reverse, there
// is nothing sensible to synthesize from text alone.
func (r *Resolver) ForwardGeocode(ctx context.Context, address string) (*models.ResolvedAddress, bool, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		r.metrics.Resolutions.WithLabelValues(string(models.DirectionForward), "invalid").Inc()
		return nil, false, fmt.Errorf("%w: empty address", ErrInvalidInput)
	}

	r.metrics.ActiveLookups.Inc()
	defer r.metrics.ActiveLookups.Dec()

	if cached, hit, err := r.cache.GetForward(ctx, trimmed); err != nil {
		r.log.WarnContext(ctx, "Result cache read failed", "error", err, "address", trimmed)
	} else if hit {
		r.metrics.CacheLookups.WithLabelValues(string(models.DirectionForward), "hit").Inc()
		return cached, true, nil
	}
	r.metrics.CacheLookups.WithLabelValues(string(models.DirectionForward), "miss").Inc()

	// Providers are tried strictly in priority order so that a confident
	// early answer skips the remaining backends entirely.
	var best *candidate
	for _, provider := range r.providers {
		if !r.reserve(ctx, provider.Name()) {
			continue
		}

		raw, err := r.callProvider(ctx, provider, func(callCtx context.Context) (*models.RawGeoResult, error) {
			return provider.Forward(callCtx, trimmed)
		})
		if err != nil {
			r.log.WarnContext(ctx, "Provider forward lookup failed",
				"provider", provider.Name(), "address", trimmed, "error", err)
			continue
		}

		if !raw.HasCoords || math.Abs(raw.Latitude) > 90 || math.Abs(raw.Longitude) > 180 {
			r.log.DebugContext(ctx, "Discarding forward result without valid coordinates",
				"provider", provider.Name(), "address", trimmed)
			continue
		}

		score := r.scorer.Score(raw, models.DirectionForward)
		if best == nil || score > best.score {
			best = &candidate{raw: raw, score: score}
		}

		if score > forwardShortCircuit {
			r.log.DebugContext(ctx, "Forward geocoding short-circuit",
				"provider", provider.Name(), "score", score)
			break
		}
	}

	if best == nil {
		r.metrics.Resolutions.WithLabelValues(string(models.DirectionForward), "not_found").Inc()
		r.log.InfoContext(ctx, "Forward geocoding found no usable result", "address", trimmed)
		return nil, false, nil
	}

	resolved := r.buildResolved(best, models.DirectionForward, best.raw.Latitude, best.raw.Longitude)
	if resolved.DisplayName == "" {
		resolved.DisplayName = trimmed
	}
	if err := r.cache.PutForward(ctx, trimmed, resolved); err != nil {
		r.log.WarnContext(ctx, "Failed to cache forward result", "error", err)
	}

	r.metrics.Resolutions.WithLabelValues(string(models.DirectionForward), "resolved").Inc()
	r.log.InfoContext(ctx, "Forward geocoding resolved",
		"provider", resolved.Source,
		"confidence", resolved.Confidence,
		"lat", resolved.Latitude,
		"lng", resolved.Longitude)

	return resolved, true, nil
}

// GetUsageStats returns today's per-provider call counts for operational
// visibility. Providers without any calls today report zero.
func (r *Resolver) GetUsageStats(ctx context.Context) (map[string]int, error) {
	names := make([]string, 0, len(r.providers))
	for _, provider := range r.providers {
		names = append(names, provider.Name())
	}
	return r.quota.Usage(ctx, names)
}

// reverseFanOut queries every quota-eligible provider concurrently and
// returns the highest-scoring valid candidate, or nil when none qualify.
func (r *Resolver) reverseFanOut(ctx context.Context, lat, lng float64) *candidate {
	var (
		mu   sync.Mutex
		best *candidate
	)

	grp, grpCtx := errgroup.WithContext(ctx)
	for _, provider := range r.providers {
		if !r.reserve(ctx, provider.Name()) {
			continue
		}

		grp.Go(func() error {
			raw, err := r.callProvider(grpCtx, provider, func(callCtx context.Context) (*models.RawGeoResult, error) {
				return provider.Reverse(callCtx, lat, lng)
			})
			if err != nil {
				// One provider failing never aborts the resolution.
				r.log.WarnContext(grpCtx, "Provider reverse lookup failed",
					"provider", provider.Name(), "lat", lat, "lng", lng, "error", err)
				return nil
			}

			if len(raw.Formatted) < minReverseDisplayLen {
				r.log.DebugContext(grpCtx, "Discarding reverse result with unusable display string",
					"provider", provider.Name(), "display", raw.Formatted)
				return nil
			}

			score := r.scorer.Score(raw, models.DirectionReverse)

			mu.Lock()
			if best == nil || score > best.score {
				best = &candidate{raw: raw, score: score}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()

	return best
}

// reserve applies the quota gate for one provider call. Store errors are
// treated as a skip: a broken counter backend must not let a provider run
// past its ceiling.
func (r *Resolver) reserve(ctx context.Context, provider string) bool {
	ok, err := r.quota.TryReserve(ctx, provider)
	if err != nil {
		r.log.WarnContext(ctx, "Quota reservation failed, skipping provider",
			"provider", provider, "error", err)
		return false
	}
	if !ok {
		r.metrics.QuotaSkips.WithLabelValues(provider).Inc()
		r.log.InfoContext(ctx, "Provider skipped, daily quota exhausted", "provider", provider)
		return false
	}
	return true
}

// callProvider runs one adapter call under its own timeout and records the
// request duration.
func (r *Resolver) callProvider(
	ctx context.Context,
	provider geocoding.Adapter,
	call func(ctx context.Context) (*models.RawGeoResult, error),
) (*models.RawGeoResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	start := time.Now()
	raw, err := call(callCtx)
	r.metrics.ProviderSeconds.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		r.metrics.ProviderErrors.WithLabelValues(provider.Name()).Inc()
		return nil, err
	}

	return raw, nil
}

// buildResolved converts the winning candidate into the caller-facing
// value. The display line prefers our own formatting and falls back to the
// provider's formatted string when too few structured fields are present.
func (r *Resolver) buildResolved(best *candidate, direction models.Direction, lat, lng float64) *models.ResolvedAddress {
	raw := best.raw

	display := r.formatter.Format(raw)
	if display == "" {
		display = raw.Formatted
	}

	neighbourhood := raw.Neighbourhood
	if neighbourhood == "" {
		neighbourhood = raw.Suburb
	}

	return &models.ResolvedAddress{
		DisplayName:   display,
		HouseNumber:   raw.HouseNumber,
		Road:          raw.Road,
		Neighbourhood: neighbourhood,
		City:          raw.BestCity(),
		State:         raw.State,
		Postcode:      raw.Postcode,
		Country:       raw.Country,
		Confidence:    best.score,
		Source:        raw.Provider,
		Kind:          direction,
		Latitude:      lat,
		Longitude:     lng,
		ResolvedAt:    r.clock.Now().UTC(),
	}
}

// synthesizeFallback builds the coordinate-only reverse result used when
// every provider came up empty.
func (r *Resolver) synthesizeFallback(lat, lng float64) *models.ResolvedAddress {
	return &models.ResolvedAddress{
		DisplayName: fmt.Sprintf("Lat: %.4f, Lng: %.4f", lat, lng),
		Confidence:  fallbackConfidence,
		Source:      models.SourceFallback,
		Kind:        models.DirectionReverse,
		Latitude:    lat,
		Longitude:   lng,
		ResolvedAt:  r.clock.Now().UTC(),
	}
}
