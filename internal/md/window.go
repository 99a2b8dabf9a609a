package md

// Window is a fixed-capacity rolling window of closed candles, oldest first.
type Window struct {
	candles []Candle
	size    int
	index   int
	filled  bool
}

func NewWindow(size int) *Window {
	return &Window{
		candles: make([]Candle, size),
		size:    size,
	}
}

// Add appends a closed candle. Candles with an open time at or before the
// newest stored candle are ignored so re-fetched history never duplicates.
func (w *Window) Add(candle Candle) bool {
	if last, ok := w.Last(); ok && !candle.OpenTime.After(last.OpenTime) {
		return false
	}
	w.candles[w.index] = candle
	w.index = (w.index + 1) % w.size
	if w.index == 0 {
		w.filled = true
	}
	return true
}

func (w *Window) Len() int {
	if w.filled {
		return w.size
	}
	return w.index
}

func (w *Window) Last() (Candle, bool) {
	if w.Len() == 0 {
		return Candle{}, false
	}
	idx := (w.index - 1 + w.size) % w.size
	return w.candles[idx], true
}

// Values returns the window contents oldest first.
func (w *Window) Values() []Candle {
	length := w.Len()
	result := make([]Candle, 0, length)
	if length == 0 {
		return result
	}
	if w.filled {
		result = append(result, w.candles[w.index:]...)
	}
	result = append(result, w.candles[:w.index]...)
	return result
}
