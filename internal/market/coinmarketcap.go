package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"TradePulse/internal/model"
)

// CoinMarketCapFetcher fetches bitcoin prices from the CoinMarketCap Pro API.
type CoinMarketCapFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewCoinMarketCapFetcher creates a fetcher with optional proxy support.
func NewCoinMarketCapFetcher(apiKey, proxyURL string) *CoinMarketCapFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &CoinMarketCapFetcher{
		BaseURL: "https://pro-api.coinmarketcap.com",
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *CoinMarketCapFetcher) Name() string { return "coinmarketcap" }

type cmcHistoricalResponse struct {
	Data struct {
		Quotes []struct {
			Timestamp string `json:"timestamp"`
			Quote     struct {
				USD struct {
					Price float64 `json:"price"`
				} `json:"USD"`
			} `json:"quote"`
		} `json:"quotes"`
	} `json:"data"`
}

type cmcLatestResponse struct {
	Data struct {
		BTC struct {
			Quote struct {
				USD struct {
					Price float64 `json:"price"`
				} `json:"USD"`
			} `json:"quote"`
		} `json:"BTC"`
	} `json:"data"`
}

func (f *CoinMarketCapFetcher) HistoricalPrices(ctx context.Context, window time.Duration) ([]model.PricePoint, error) {
	end := time.Now().Unix()
	start := end - int64(window.Seconds())
	endpoint := fmt.Sprintf(
		"%s/v1/cryptocurrency/quotes/historical?symbol=BTC&time_start=%d&time_end=%d&interval=5m",
		f.BaseURL, start, end)

	body, err := f.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var resp cmcHistoricalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("cmc decode: %w", err)
	}
	if len(resp.Data.Quotes) == 0 {
		return nil, fmt.Errorf("cmc: no data returned")
	}

	points := make([]model.PricePoint, 0, len(resp.Data.Quotes))
	for _, q := range resp.Data.Quotes {
		t, err := time.Parse(time.RFC3339, q.Timestamp)
		if err != nil {
			continue
		}
		points = append(points, model.PricePoint{
			Price:     q.Quote.USD.Price,
			Timestamp: t.UnixMilli(),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points, nil
}

func (f *CoinMarketCapFetcher) CurrentPrice(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/v1/cryptocurrency/quotes/latest?symbol=BTC&convert=USD", f.BaseURL)
	body, err := f.get(ctx, endpoint)
	if err != nil {
		return 0, err
	}
	var resp cmcLatestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("cmc decode: %w", err)
	}
	if resp.Data.BTC.Quote.USD.Price == 0 {
		return 0, fmt.Errorf("cmc: no price returned")
	}
	return resp.Data.BTC.Quote.USD.Price, nil
}

func (f *CoinMarketCapFetcher) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-CMC_PRO_API_KEY", f.APIKey)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cmc fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cmc read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cmc: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
