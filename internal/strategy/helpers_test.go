package strategy

import (
	"time"

	"hlbot/internal/md"
)

var testBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// candlesFromCloses builds a 1m series where each candle's range hugs its
// close, which is all the close-driven strategies look at.
func candlesFromCloses(closes []float64) []md.Candle {
	out := make([]md.Candle, len(closes))
	for i, c := range closes {
		out[i] = md.Candle{
			OpenTime: testBase.Add(time.Duration(i) * time.Minute),
			Open:     c,
			High:     c + 0.5,
			Low:      c - 0.5,
			Close:    c,
			Volume:   10,
		}
	}
	return out
}

func flatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}
