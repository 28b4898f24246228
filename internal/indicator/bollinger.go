package indicator

import (
	"math"

	"TradePulse/internal/model"
)

// Bollinger computes the rolling mean over the last period prices and a
// k·σ band around it. Windows shorter than the period are valid input: the
// divisor stays at the nominal period, matching the upstream bot's math.
func Bollinger(prices []float64, period int, stdDevMultiplier float64) model.BollingerBands {
	recent := prices
	if len(prices) > period {
		recent = prices[len(prices)-period:]
	}

	var sum float64
	for _, p := range recent {
		sum += p
	}
	movingAverage := sum / float64(period)

	var sqSum float64
	for _, p := range recent {
		sqSum += (p - movingAverage) * (p - movingAverage)
	}
	stdDev := math.Sqrt(sqSum / float64(period))

	return model.BollingerBands{
		UpperBand:     movingAverage + stdDevMultiplier*stdDev,
		LowerBand:     movingAverage - stdDevMultiplier*stdDev,
		MovingAverage: movingAverage,
	}
}
