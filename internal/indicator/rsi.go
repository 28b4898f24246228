package indicator

// RSI computes the relative strength index from the first period price
// changes, mapped to 100 − 100/(1+RS). When the average loss is zero the
// result is 100 for a net gain and 0 when the average gain is zero too.
// Output is always within [0, 100].
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < 2 {
		return 0
	}

	var gains, losses float64
	for i := 1; i <= period && i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 0
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
