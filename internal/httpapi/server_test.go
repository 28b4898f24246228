package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/internal/eventstore"
	"TradePulse/internal/ingest"
	"TradePulse/internal/ledger"
	"TradePulse/internal/market"
	"TradePulse/internal/model"
	"TradePulse/internal/signal"
	"TradePulse/internal/storage"
)

const testModelUUID = "cfaa456f-9a45-4e46-adac-38f9f809ce5b"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zerolog.Nop()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	events := eventstore.New(store, logger)
	t.Cleanup(events.Close)

	feed := market.NewFeed(map[model.Asset]market.Fetcher{
		model.AssetBitcoin: &market.MockFetcher{History: risingHistory(50000)},
		model.AssetNasdaq:  &market.MockFetcher{History: risingHistory(20000)},
	}, market.FeedConfig{
		PollInterval:    time.Minute,
		BootstrapWindow: 6 * time.Hour,
		FetchRetries:    0,
	}, logger)
	require.NoError(t, feed.Bootstrap(context.Background()))

	engine := signal.NewEngine(feed, logger)
	book := ledger.New(store, feed, engine, events, 1000, logger)
	ingestor := ingest.New(events, store, testModelUUID, logger)
	t.Cleanup(ingestor.Close)

	return NewServer(":0", ingestor, events, feed, book, logger)
}

func risingHistory(base float64) []model.PricePoint {
	points := make([]model.PricePoint, 7)
	for i := range points {
		points[i] = model.PricePoint{Price: base + float64(i), Timestamp: int64(i+1) * 60_000}
	}
	// Last point holds the exact base price so trade math stays round.
	points[6].Price = base
	return points
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestIngestEndpoint_MalformedBodyIsStill200(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("definitely not json")))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	// And nothing was ingested.
	_, snapshot := doJSON(t, server.Handler(), http.MethodGet, "/dashboard/data", nil)
	assert.Empty(t, snapshot)
}

func TestPollEndpoint_CursorRoundTrip(t *testing.T) {
	server := newTestServer(t)

	note, err := json.Marshal(map[string]any{
		"content":  map[string]any{"attributes": map[string]any{"model_uuid": testModelUUID}},
		"instance": "inst-1",
		"datastream": []map[string]any{{
			"stream:point": map[string]any{
				"stream:id":        ingest.StreamPrice,
				"stream:value":     map[string]any{"btcPrice": 50000.0, "ndxPrice": 20000.0},
				"stream:timestamp": "2026-01-02T15:04:05Z",
			},
		}},
	})
	require.NoError(t, err)

	rec, _ := doJSON(t, server.Handler(), http.MethodPost, "/", map[string]any{
		"topic":        "stream",
		"event":        "extraction",
		"notification": string(note),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, poll := doJSON(t, server.Handler(), http.MethodGet, "/dashboard/data/poll?lastFetchTime=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := poll["events"].(map[string]any)
	require.Contains(t, events, "inst-1")
	cursor := int64(poll["lastFetchTime"].(float64))
	require.Greater(t, cursor, int64(0))

	// Same cursor, no new writes: empty delta, cursor unchanged.
	rec, poll = doJSON(t, server.Handler(), http.MethodGet,
		fmt.Sprintf("/dashboard/data/poll?lastFetchTime=%d", cursor), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, poll["events"])
	assert.Equal(t, float64(cursor), poll["lastFetchTime"])
}

func TestPollEndpoint_BadCursor(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server.Handler(), http.MethodGet, "/dashboard/data/poll?lastFetchTime=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPriceEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec, body := doJSON(t, server.Handler(), http.MethodGet, "/price", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50000.0, body["btcPrice"])
	assert.Equal(t, 20000.0, body["ndxPrice"])
}

func TestAdviceEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec, body := doJSON(t, server.Handler(), http.MethodGet, "/advice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, []any{"BUY", "SELL"}, body["btcSignal"])
	assert.Contains(t, []any{"BUY", "SELL"}, body["ndxSignal"])
}

func TestTradeFlow_LoginBuySellOverHTTP(t *testing.T) {
	server := newTestServer(t)

	rec, body := doJSON(t, server.Handler(), http.MethodPost, "/login", map[string]any{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "register", body["action"])

	rec, body = doJSON(t, server.Handler(), http.MethodPost, "/buy", map[string]any{"email": "alice@example.com", "type": "BTC"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	assert.InDelta(t, 0.02, body["amount"].(float64), 1e-12)

	rec, body = doJSON(t, server.Handler(), http.MethodGet, "/user-info?email=alice@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.02, body["btcAmount"].(float64), 1e-12)
	assert.Equal(t, 0.0, body["balance"])

	rec, body = doJSON(t, server.Handler(), http.MethodPost, "/sell", map[string]any{"email": "alice@example.com", "type": "BTC"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	assert.InDelta(t, 1000.0, body["balance"].(float64), 1e-9)

	rec, body = doJSON(t, server.Handler(), http.MethodPost, "/sell", map[string]any{"email": "alice@example.com", "type": "BTC"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, ledger.ReasonNoOpenPosition, body["reason"])
}

func TestBuyEndpoint_Validation(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server.Handler(), http.MethodPost, "/buy", map[string]any{"email": "alice@example.com", "type": "GOLD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, server.Handler(), http.MethodPost, "/buy", map[string]any{"type": "BTC"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserInfoEndpoint_RequiresEmail(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server.Handler(), http.MethodGet, "/user-info", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
