package indicator

import "TradePulse/internal/model"

// CalcMACD computes the difference of two EMAs of different spans. The
// signal line is an EMA over the MACD values of the most recent
// signalPeriod points, degrading gracefully when fewer are available.
func CalcMACD(prices []float64, shortPeriod, longPeriod, signalPeriod int) model.MACD {
	if len(prices) == 0 {
		return model.MACD{}
	}

	start := len(prices) - signalPeriod
	if start < 0 {
		start = 0
	}
	macdSeries := make([]float64, 0, len(prices)-start)
	for i := start; i < len(prices); i++ {
		prefix := prices[:i+1]
		macdSeries = append(macdSeries, EMA(prefix, shortPeriod)-EMA(prefix, longPeriod))
	}

	macdLine := macdSeries[len(macdSeries)-1]
	signalLine := EMA(macdSeries, signalPeriod)

	return model.MACD{
		MACDLine:   macdLine,
		SignalLine: signalLine,
		Histogram:  macdLine - signalLine,
	}
}
