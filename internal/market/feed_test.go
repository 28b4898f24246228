package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/internal/model"
)

func testFeedConfig() FeedConfig {
	return FeedConfig{
		PollInterval:    66 * time.Second,
		BootstrapWindow: 6 * time.Hour,
		FetchRetries:    0,
	}
}

func seedHistory() []model.PricePoint {
	return []model.PricePoint{
		{Price: 50000, Timestamp: 1000},
		{Price: 50100, Timestamp: 2000},
	}
}

func TestBootstrap_SeedsBuffers(t *testing.T) {
	feed := NewFeed(map[model.Asset]Fetcher{
		model.AssetBitcoin: &MockFetcher{History: seedHistory()},
		model.AssetNasdaq:  &MockFetcher{History: []model.PricePoint{{Price: 20000, Timestamp: 1500}}},
	}, testFeedConfig(), zerolog.Nop())

	require.NoError(t, feed.Bootstrap(context.Background()))

	assert.Len(t, feed.History(model.AssetBitcoin), 2)
	prices := feed.LatestPrice()
	assert.Equal(t, 50100.0, prices.BTCPrice)
	assert.Equal(t, 20000.0, prices.NDXPrice)
}

func TestBootstrap_FetchFailureIsFatal(t *testing.T) {
	feed := NewFeed(map[model.Asset]Fetcher{
		model.AssetBitcoin: &MockFetcher{Err: errors.New("upstream down")},
	}, testFeedConfig(), zerolog.Nop())

	err := feed.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap bitcoin history")
}

func TestObserve_AppendsNewPrice(t *testing.T) {
	feed := NewFeed(map[model.Asset]Fetcher{
		model.AssetBitcoin: &MockFetcher{History: seedHistory()},
	}, testFeedConfig(), zerolog.Nop())
	require.NoError(t, feed.Bootstrap(context.Background()))

	feed.observe(model.AssetBitcoin, 50200, 3000)

	history := feed.History(model.AssetBitcoin)
	require.Len(t, history, 3)
	assert.Equal(t, model.PricePoint{Price: 50200, Timestamp: 3000}, history[2])
}

func TestObserve_DuplicatePriceCollapses(t *testing.T) {
	feed := NewFeed(map[model.Asset]Fetcher{
		model.AssetBitcoin: &MockFetcher{History: seedHistory()},
	}, testFeedConfig(), zerolog.Nop())
	require.NoError(t, feed.Bootstrap(context.Background()))

	// Same price as the last point: refresh its timestamp, don't grow.
	feed.observe(model.AssetBitcoin, 50100, 3000)

	history := feed.History(model.AssetBitcoin)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3000), history[1].Timestamp)
	assert.Equal(t, 50100.0, history[1].Price)
}

func TestHistory_AscendingAfterObservations(t *testing.T) {
	feed := NewFeed(map[model.Asset]Fetcher{
		model.AssetBitcoin: &MockFetcher{History: seedHistory()},
	}, testFeedConfig(), zerolog.Nop())
	require.NoError(t, feed.Bootstrap(context.Background()))

	feed.observe(model.AssetBitcoin, 50200, 3000)
	feed.observe(model.AssetBitcoin, 50200, 4000)
	feed.observe(model.AssetBitcoin, 50300, 5000)

	history := feed.History(model.AssetBitcoin)
	for i := 1; i < len(history); i++ {
		assert.Less(t, history[i-1].Timestamp, history[i].Timestamp)
	}
}

func TestHistory_ReturnsACopy(t *testing.T) {
	feed := NewFeed(map[model.Asset]Fetcher{
		model.AssetBitcoin: &MockFetcher{History: seedHistory()},
	}, testFeedConfig(), zerolog.Nop())
	require.NoError(t, feed.Bootstrap(context.Background()))

	history := feed.History(model.AssetBitcoin)
	history[0].Price = 1

	fresh := feed.History(model.AssetBitcoin)
	assert.Equal(t, 50000.0, fresh[0].Price)
}

func TestWaitFor_PacesAgainstLastPoint(t *testing.T) {
	feed := NewFeed(map[model.Asset]Fetcher{
		model.AssetBitcoin: &MockFetcher{History: seedHistory()},
	}, testFeedConfig(), zerolog.Nop())
	require.NoError(t, feed.Bootstrap(context.Background()))

	// Seed points are far in the past: overdue cycles clamp to the minimum
	// delay instead of spinning.
	assert.Equal(t, time.Second, feed.waitFor(model.AssetBitcoin))

	// Fresh point: sleep roughly the full interval from its timestamp.
	feed.observe(model.AssetBitcoin, 50200, time.Now().UnixMilli())
	wait := feed.waitFor(model.AssetBitcoin)
	assert.Greater(t, wait, 60*time.Second)
	assert.LessOrEqual(t, wait, 66*time.Second)

	// No history at all: fall back to the poll interval.
	assert.Equal(t, 66*time.Second, feed.waitFor(model.AssetNasdaq))
}

func TestFetchWithRetry_BoundedAttempts(t *testing.T) {
	attempts := 0
	_, err := fetchWithRetry(context.Background(), 2, zerolog.Nop(), func() (int, error) {
		attempts++
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries reached")
	assert.Equal(t, 3, attempts)
}

func TestFetchWithRetry_SucceedsAfterFailure(t *testing.T) {
	attempts := 0
	v, err := fetchWithRetry(context.Background(), 2, zerolog.Nop(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
