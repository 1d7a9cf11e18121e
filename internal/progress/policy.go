package progress

import (
	"math"
	"time"
)

// default policy values
const (
	DefaultPollInterval     = 2 * time.Second
	DefaultSaveInterval     = 10   // position seconds
	DefaultCompletionRatio  = 0.95 // of the duration
	DefaultCompletionMargin = 3.0  // seconds before the end
	DefaultSkipAhead        = 5.0  // seconds
)

// Policy when progress is sampled, saved and considered complete
type Policy struct {
	PollInterval     time.Duration
	SaveInterval     int
	CompletionRatio  float64
	CompletionMargin float64
	SkipAhead        float64
}

// DefaultPolicy ...
func DefaultPolicy() Policy {
	return Policy{
		PollInterval:     DefaultPollInterval,
		SaveInterval:     DefaultSaveInterval,
		CompletionRatio:  DefaultCompletionRatio,
		CompletionMargin: DefaultCompletionMargin,
		SkipAhead:        DefaultSkipAhead,
	}
}

// Completed position reached CompletionRatio of duration or is within
// CompletionMargin seconds of the end
func (p Policy) Completed(position, duration float64) bool {
	if duration <= 0 {
		return false
	}
	return position >= duration*p.CompletionRatio || duration-position <= p.CompletionMargin
}

// DueForSave the floored position sits on a save boundary not saved yet
func (p Policy) DueForSave(position float64, lastSaved int) bool {
	sec := Second(position)
	interval := p.SaveInterval
	if interval < 1 {
		interval = 1
	}
	return sec%interval == 0 && sec != lastSaved
}

// ShouldResume a saved position far enough in to seek to
func (p Policy) ShouldResume(position float64) bool {
	return position > p.SkipAhead
}

// Second floor of a position in seconds
func Second(position float64) int {
	return int(math.Floor(position))
}
