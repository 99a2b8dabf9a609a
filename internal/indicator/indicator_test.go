package indicator

import (
	"math"
	"testing"
	"time"

	"hlbot/internal/md"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMAKnownValues(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := SMA(values, 3)

	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Fatalf("expected NaN warm-up, got %v", got[:2])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(got[i+2], w) {
			t.Fatalf("sma[%d]: expected %v, got %v", i+2, w, got[i+2])
		}
	}
}

func TestSMAWithTooFewValues(t *testing.T) {
	got := SMA([]float64{1, 2}, 3)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Fatalf("expected all NaN, got %v at %d", v, i)
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	values := []float64{2, 4, 6, 8}
	got := EMA(values, 3)

	if !almostEqual(got[2], 4) {
		t.Fatalf("expected seed 4 (sma of first 3), got %v", got[2])
	}
	// alpha = 2/(3+1) = 0.5, next = (8-4)*0.5 + 4 = 6
	if !almostEqual(got[3], 6) {
		t.Fatalf("expected 6, got %v", got[3])
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	got := RSI(values, 5)
	last := got[len(got)-1]
	if !almostEqual(last, 100) {
		t.Fatalf("expected RSI 100 on monotonic gains, got %v", last)
	}
}

func TestRSIWilderSmoothing(t *testing.T) {
	closes := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83}
	period := 5
	got := RSI(closes, period)

	if !math.IsNaN(got[period-1]) {
		t.Fatalf("expected NaN before first defined value")
	}

	// First value: simple means over the first 5 deltas.
	avgGain := (0.34 + 0.06 + 0.72) / 5
	avgLoss := (0.25 + 0.54) / 5
	want := 100 - 100/(1+avgGain/avgLoss)
	if math.Abs(got[period]-want) > 1e-6 {
		t.Fatalf("rsi[%d]: expected %v, got %v", period, want, got[period])
	}

	// Next value decays the averages with weight (period-1)/period.
	avgGain = (avgGain*4 + 0.5) / 5
	avgLoss = (avgLoss * 4) / 5
	want = 100 - 100/(1+avgGain/avgLoss)
	if math.Abs(got[period+1]-want) > 1e-6 {
		t.Fatalf("rsi[%d]: expected %v, got %v", period+1, want, got[period+1])
	}
}

func TestBollingerBandsSymmetric(t *testing.T) {
	closes := []float64{10, 12, 14, 16, 18}
	bands := Bollinger(closes, 5, 2)

	i := len(closes) - 1
	if !almostEqual(bands.Mid[i], 14) {
		t.Fatalf("expected mid 14, got %v", bands.Mid[i])
	}
	up := bands.Upper[i] - bands.Mid[i]
	down := bands.Mid[i] - bands.Lower[i]
	if !almostEqual(up, down) {
		t.Fatalf("expected symmetric bands, got +%v -%v", up, down)
	}
	// Population stddev of {10,12,14,16,18} is sqrt(8).
	if math.Abs(up-2*math.Sqrt(8)) > 1e-9 {
		t.Fatalf("expected band offset %v, got %v", 2*math.Sqrt(8), up)
	}
}

func TestMACDSignalOverDefinedRegion(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	series := MACD(closes, 12, 26, 9)

	if !math.IsNaN(series.Line[24]) {
		t.Fatalf("expected NaN MACD line before slow EMA warm-up")
	}
	if math.IsNaN(series.Line[25]) {
		t.Fatalf("expected MACD line defined at slow EMA warm-up")
	}
	firstSignal := 25 + 9 - 1
	if !math.IsNaN(series.Signal[firstSignal-1]) {
		t.Fatalf("expected NaN signal before its warm-up")
	}
	if math.IsNaN(series.Signal[firstSignal]) {
		t.Fatalf("expected signal defined at %d", firstSignal)
	}
	last := len(closes) - 1
	if math.IsNaN(series.Histogram[last]) {
		t.Fatalf("expected histogram defined at tail")
	}
	if !almostEqual(series.Histogram[last], series.Line[last]-series.Signal[last]) {
		t.Fatalf("histogram must equal line minus signal")
	}
}

func TestATRConstantRange(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]md.Candle, 20)
	for i := range candles {
		candles[i] = md.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Open:     100, High: 102, Low: 98, Close: 100,
		}
	}
	got := ATR(candles, 14)
	last := got[len(got)-1]
	if !almostEqual(last, 4) {
		t.Fatalf("expected ATR 4 for constant 4-point range, got %v", last)
	}
}

func TestRollingMaxMin(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	max := RollingMax(values, 3)
	min := RollingMin(values, 3)

	if !almostEqual(max[5], 9) || !almostEqual(max[7], 9) {
		t.Fatalf("rolling max wrong: %v", max)
	}
	if !almostEqual(min[3], 1) || !almostEqual(min[6], 2) {
		t.Fatalf("rolling min wrong: %v", min)
	}
}

func TestDeterminism(t *testing.T) {
	closes := []float64{5, 7, 6, 8, 9, 7, 10, 11, 9, 12}
	a := RSI(closes, 5)
	b := RSI(closes, 5)
	for i := range a {
		if math.IsNaN(a[i]) != math.IsNaN(b[i]) {
			t.Fatalf("NaN mismatch at %d", i)
		}
		if !math.IsNaN(a[i]) && a[i] != b[i] {
			t.Fatalf("expected identical output, got %v vs %v at %d", a[i], b[i], i)
		}
	}
}
