package signal

import (
	"github.com/rs/zerolog"

	"TradePulse/internal/indicator"
	"TradePulse/internal/model"
)

// Indicator periods are deliberately short so the signal reacts within the
// few-hour window the price buffers cover.
const (
	bollingerPeriod     = 7
	bollingerMultiplier = 1.5
	emaPeriod           = 5
	rsiPeriod           = 5
	macdShortPeriod     = 5
	macdLongPeriod      = 10
	macdSignalPeriod    = 3
)

// PriceSource provides a stable snapshot of an asset's price history.
type PriceSource interface {
	History(asset model.Asset) []model.PricePoint
}

// Engine derives BUY/SELL signals from rolling price history. It holds no
// mutable state; ActionSignal is safe to call concurrently with the feed's
// refresh loop.
type Engine struct {
	prices PriceSource
	log    zerolog.Logger
}

// NewEngine creates an Engine over the given price source.
func NewEngine(prices PriceSource, logger zerolog.Logger) *Engine {
	return &Engine{
		prices: prices,
		log:    logger.With().Str("component", "signal").Logger(),
	}
}

// ActionSignal computes the current directional signal for both assets.
func (e *Engine) ActionSignal() model.Advice {
	btcScore := e.scoreAsset(model.AssetBitcoin)
	ndxScore := e.scoreAsset(model.AssetNasdaq)
	e.log.Debug().Float64("btc_score", btcScore).Float64("ndx_score", ndxScore).Msg("scored assets")
	return model.Advice{
		BTCSignal: toSignal(btcScore),
		NDXSignal: toSignal(ndxScore),
	}
}

func (e *Engine) scoreAsset(asset model.Asset) float64 {
	points := e.prices.History(asset)
	return Score(points)
}

// Score combines four indicator votes over the price window into a single
// scalar. The weights are asymmetric on purpose: under indicator
// disagreement the combination leans BUY rather than SELL.
func Score(points []model.PricePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}
	ind := Indicators(prices)
	lastPrice := prices[len(prices)-1]

	var score float64

	// Bollinger: below the lower band is a dip, above the upper a stretch.
	if lastPrice < ind.Bollinger.LowerBand {
		score += 0.5
	} else if lastPrice > ind.Bollinger.UpperBand {
		score -= 0.5
	}

	// EMA: reduced penalty below the average to lessen sell bias.
	if lastPrice > ind.EMA {
		score += 0.5
	} else {
		score -= 0.25
	}

	// RSI: tiered by distance from center.
	switch {
	case ind.RSI < 40:
		score += 0.5
	case ind.RSI > 60:
		score -= 0.5
	case ind.RSI < 45:
		score += 0.25
	case ind.RSI > 55:
		score -= 0.25
	}

	// MACD: reduced penalty on a negative crossover.
	if ind.MACD.MACDLine > ind.MACD.SignalLine {
		score += 0.5
	} else {
		score -= 0.25
	}

	return score
}

// Indicators computes the full indicator set for one price window.
func Indicators(prices []float64) model.IndicatorSet {
	return model.IndicatorSet{
		Bollinger: indicator.Bollinger(prices, bollingerPeriod, bollingerMultiplier),
		EMA:       indicator.EMA(prices, emaPeriod),
		RSI:       indicator.RSI(prices, rsiPeriod),
		MACD:      indicator.CalcMACD(prices, macdShortPeriod, macdLongPeriod, macdSignalPeriod),
	}
}

func toSignal(score float64) model.Signal {
	if score >= 0 {
		return model.SignalBuy
	}
	return model.SignalSell
}
