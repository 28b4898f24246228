package market

import (
	"context"
	"time"

	"TradePulse/internal/model"
)

// Fetcher retrieves price data for one asset from an upstream source.
type Fetcher interface {
	// HistoricalPrices returns roughly the last window of prices at a
	// 5-minute grain, oldest first.
	HistoricalPrices(ctx context.Context, window time.Duration) ([]model.PricePoint, error)
	// CurrentPrice returns the single latest observed price.
	CurrentPrice(ctx context.Context) (float64, error)
	Name() string
}

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	History []model.PricePoint
	Price   float64
	Err     error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) HistoricalPrices(_ context.Context, _ time.Duration) ([]model.PricePoint, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.History, nil
}

func (m *MockFetcher) CurrentPrice(_ context.Context) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Price, nil
}
