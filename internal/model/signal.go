package model

// Signal is a BUY/SELL directional recommendation derived from indicators.
// It is distinct from an Action, which is an actually executed trade.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

// Advice is the signal pair for both tracked assets.
type Advice struct {
	BTCSignal Signal `json:"btcSignal"`
	NDXSignal Signal `json:"ndxSignal"`
}

// BollingerBands holds the rolling mean and the k·σ envelope around it.
type BollingerBands struct {
	UpperBand     float64
	LowerBand     float64
	MovingAverage float64
}

// MACD holds the fast/slow EMA difference and its signal line.
type MACD struct {
	MACDLine   float64
	SignalLine float64
	Histogram  float64
}

// IndicatorSet holds all computed indicators for one asset's price window.
type IndicatorSet struct {
	Bollinger BollingerBands
	EMA       float64
	RSI       float64
	MACD      MACD
}
