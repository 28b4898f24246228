package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRSI_AlwaysWithinBounds(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
	}{
		{"all gains", []float64{100, 101, 102, 103, 104, 105, 106}},
		{"all losses", []float64{106, 105, 104, 103, 102, 101, 100}},
		{"mixed", []float64{100, 102, 101, 105, 103, 104, 102}},
		{"flat", []float64{100, 100, 100, 100, 100, 100}},
		{"short window", []float64{100, 101}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := RSI(tt.prices, 5)
			assert.GreaterOrEqual(t, rsi, 0.0)
			assert.LessOrEqual(t, rsi, 100.0)
		})
	}
}

func TestRSI_ZeroLossHandling(t *testing.T) {
	// Net gain with no losses saturates at 100.
	assert.Equal(t, 100.0, RSI([]float64{100, 101, 102, 103, 104, 105}, 5))
	// No movement at all is 0, not NaN.
	assert.Equal(t, 0.0, RSI([]float64{100, 100, 100, 100, 100, 100}, 5))
}

func TestRSI_AllLossesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, RSI([]float64{106, 105, 104, 103, 102, 101}, 5))
}

func TestBollinger_BandOrdering(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
	}{
		{"trending", []float64{100, 101, 102, 103, 104, 105, 106}},
		{"choppy", []float64{100, 98, 103, 99, 104, 97, 102}},
		{"short window", []float64{100, 105, 95}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bands := Bollinger(tt.prices, 7, 1.5)
			assert.LessOrEqual(t, bands.LowerBand, bands.MovingAverage)
			assert.LessOrEqual(t, bands.MovingAverage, bands.UpperBand)
		})
	}
}

func TestBollinger_FlatSeriesCollapsesBands(t *testing.T) {
	bands := Bollinger([]float64{100, 100, 100, 100, 100, 100, 100}, 7, 1.5)
	assert.Equal(t, 100.0, bands.MovingAverage)
	assert.Equal(t, bands.MovingAverage, bands.UpperBand)
	assert.Equal(t, bands.MovingAverage, bands.LowerBand)
}

func TestEMA_SeededAtFirstPrice(t *testing.T) {
	assert.Equal(t, 100.0, EMA([]float64{100}, 5))
}

func TestEMA_TracksTrend(t *testing.T) {
	rising := EMA([]float64{100, 101, 102, 103, 104, 105, 106}, 5)
	assert.Greater(t, rising, 100.0)
	assert.Less(t, rising, 106.0)
}

func TestEMA_EmptyInput(t *testing.T) {
	assert.Equal(t, 0.0, EMA(nil, 5))
}

func TestCalcMACD_RisingTrendCrossesAboveSignal(t *testing.T) {
	macd := CalcMACD([]float64{100, 101, 102, 103, 104, 105, 106}, 5, 10, 3)
	assert.Greater(t, macd.MACDLine, 0.0)
	assert.Greater(t, macd.MACDLine, macd.SignalLine)
}

func TestCalcMACD_FallingTrendCrossesBelowSignal(t *testing.T) {
	macd := CalcMACD([]float64{106, 105, 104, 103, 102, 101, 100}, 5, 10, 3)
	assert.Less(t, macd.MACDLine, 0.0)
	assert.Less(t, macd.MACDLine, macd.SignalLine)
}

func TestCalcMACD_ShortWindowIsValid(t *testing.T) {
	macd := CalcMACD([]float64{100, 101}, 5, 10, 3)
	assert.Equal(t, macd.MACDLine-macd.SignalLine, macd.Histogram)
}
