package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"TradePulse/internal/model"
)

// FeedConfig tunes the rolling price history refresh.
type FeedConfig struct {
	PollInterval    time.Duration
	BootstrapWindow time.Duration
	FetchRetries    int
}

// Feed owns the rolling per-asset price histories. A bulk historical fetch
// seeds each buffer; Run extends it one point at a time, pacing itself
// against the last observed point rather than a wall-clock tick.
type Feed struct {
	mu      sync.RWMutex
	history map[model.Asset][]model.PricePoint

	fetchers map[model.Asset]Fetcher
	breakers map[model.Asset]*gobreaker.CircuitBreaker
	cfg      FeedConfig
	log      zerolog.Logger
}

// NewFeed creates a Feed over the given per-asset fetchers.
func NewFeed(fetchers map[model.Asset]Fetcher, cfg FeedConfig, logger zerolog.Logger) *Feed {
	breakers := make(map[model.Asset]*gobreaker.CircuitBreaker, len(fetchers))
	for asset, f := range fetchers {
		breakers[asset] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     fmt.Sprintf("%s/%s", asset, f.Name()),
			Interval: 60 * time.Second,
			Timeout:  60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return &Feed{
		history:  make(map[model.Asset][]model.PricePoint, len(fetchers)),
		fetchers: fetchers,
		breakers: breakers,
		cfg:      cfg,
		log:      logger.With().Str("component", "market").Logger(),
	}
}

// Bootstrap seeds every asset buffer with a bulk historical fetch. Failure
// here is fatal: signal computation cannot run without seed history.
func (f *Feed) Bootstrap(ctx context.Context) error {
	for asset, fetcher := range f.fetchers {
		points, err := fetchWithRetry(ctx, f.cfg.FetchRetries, f.log, func() ([]model.PricePoint, error) {
			return fetcher.HistoricalPrices(ctx, f.cfg.BootstrapWindow)
		})
		if err != nil {
			return fmt.Errorf("bootstrap %s history: %w", asset, err)
		}
		f.mu.Lock()
		f.history[asset] = points
		f.mu.Unlock()
		f.log.Info().Str("asset", string(asset)).Int("points", len(points)).
			Str("source", fetcher.Name()).Msg("price history seeded")
	}
	return nil
}

// Run refreshes one asset's buffer until the context is cancelled. Each
// cycle sleeps until lastPoint+pollInterval, so the loop slows down under
// fetch-failure backoff and catches up quickly otherwise.
func (f *Feed) Run(ctx context.Context, asset model.Asset) {
	fetcher, ok := f.fetchers[asset]
	if !ok {
		f.log.Error().Str("asset", string(asset)).Msg("no fetcher registered")
		return
	}

	for {
		wait := f.waitFor(asset)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			f.log.Info().Str("asset", string(asset)).Msg("price refresh stopped")
			return
		case <-timer.C:
		}

		price, err := fetchWithRetry(ctx, f.cfg.FetchRetries, f.log, func() (float64, error) {
			result, err := f.breakers[asset].Execute(func() (any, error) {
				return fetcher.CurrentPrice(ctx)
			})
			if err != nil {
				return 0, err
			}
			return result.(float64), nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Retries exhausted: fatal for this refresh cycle. Downstream
			// signals run on stale prices until the next cycle succeeds.
			f.log.Error().Err(err).Str("asset", string(asset)).Msg("price refresh cycle failed")
			continue
		}
		f.observe(asset, price, time.Now().UnixMilli())
	}
}

// observe appends a fresh point, collapsing a consecutive duplicate price by
// refreshing the last point's timestamp instead of growing the buffer.
func (f *Feed) observe(asset model.Asset, price float64, ts int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := f.history[asset]
	if n := len(buf); n > 0 && buf[n-1].Price == price {
		buf[n-1].Timestamp = ts
		return
	}
	f.history[asset] = append(buf, model.PricePoint{Price: price, Timestamp: ts})
}

func (f *Feed) waitFor(asset model.Asset) time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf := f.history[asset]
	if len(buf) == 0 {
		return f.cfg.PollInterval
	}
	last := buf[len(buf)-1]
	wait := time.Until(time.UnixMilli(last.Timestamp).Add(f.cfg.PollInterval))
	if wait < time.Second {
		wait = time.Second
	}
	f.log.Debug().Str("asset", string(asset)).Float64("last_price", last.Price).
		Dur("wait", wait).Msg("sleeping until next fetch")
	return wait
}

// History returns a copy of the asset's buffer. Indicator math needs a
// stable snapshot, not a view that the refresh loop can grow mid-read.
func (f *Feed) History(asset model.Asset) []model.PricePoint {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf := f.history[asset]
	out := make([]model.PricePoint, len(buf))
	copy(out, buf)
	return out
}

// LatestPrice returns the most recent price of each asset.
func (f *Feed) LatestPrice() model.LatestPrices {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out model.LatestPrices
	if buf := f.history[model.AssetBitcoin]; len(buf) > 0 {
		out.BTCPrice = buf[len(buf)-1].Price
	}
	if buf := f.history[model.AssetNasdaq]; len(buf) > 0 {
		out.NDXPrice = buf[len(buf)-1].Price
	}
	return out
}

// fetchWithRetry runs fn with exponential backoff: bounded attempts, 1s
// initial delay, doubling per attempt.
func fetchWithRetry[T any](ctx context.Context, retries int, log zerolog.Logger, fn func() (T, error)) (T, error) {
	var zero T
	delay := time.Second
	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if attempt >= retries {
			return zero, fmt.Errorf("max retries reached: %w", err)
		}
		log.Warn().Err(err).Int("attempts_left", retries-attempt).Msg("fetch failed, retrying")
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
