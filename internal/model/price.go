package model

// Asset identifies one tracked market.
type Asset string

const (
	AssetBitcoin Asset = "bitcoin"
	AssetNasdaq  Asset = "nasdaq"
)

// PricePoint is one observation in an asset's rolling price history.
// Timestamp is epoch millis.
type PricePoint struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// LatestPrices carries the most recent price of each asset.
type LatestPrices struct {
	BTCPrice float64 `json:"btcPrice"`
	NDXPrice float64 `json:"ndxPrice"`
}
