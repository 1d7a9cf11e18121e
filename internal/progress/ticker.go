package progress

import "time"

// Ticker the polling timer of a Tracker
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory create a Ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

// NewTimeTicker TickerFactory over time.NewTicker
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}
