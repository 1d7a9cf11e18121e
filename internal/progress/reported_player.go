package progress

import (
	"errors"
	"sync"
)

// ErrPlayerDestroyed command sent to a destroyed player
var ErrPlayerDestroyed = errors.New("player destroyed")

// ErrCommandQueueFull the client is not reading its commands
var ErrCommandQueueFull = errors.New("player command queue is full")

// Command instruction for a remote player client
type Command struct {
	Type     string  `json:"type"` // play, pause or seek
	Position float64 `json:"position,omitempty"`
}

// ReportedPlayer Player driven by a remote client: the client reports its
// clock and receives commands
type ReportedPlayer struct {
	mu        sync.Mutex
	position  float64
	duration  float64
	destroyed bool
	commands  chan Command
}

var _ Player = &ReportedPlayer{}

// NewReportedPlayer ...
func NewReportedPlayer() *ReportedPlayer {
	return &ReportedPlayer{commands: make(chan Command, 8)}
}

// Report update the client clock
func (rp *ReportedPlayer) Report(position, duration float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.position = position
	rp.duration = duration
}

// Commands closed on Destroy
func (rp *ReportedPlayer) Commands() <-chan Command {
	return rp.commands
}

func (rp *ReportedPlayer) Play() error {
	return rp.send(Command{Type: "play"})
}

func (rp *ReportedPlayer) Pause() error {
	return rp.send(Command{Type: "pause"})
}

func (rp *ReportedPlayer) CurrentTime() float64 {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.position
}

func (rp *ReportedPlayer) Duration() float64 {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.duration
}

func (rp *ReportedPlayer) SeekTo(seconds float64) error {
	if err := rp.send(Command{Type: "seek", Position: seconds}); err != nil {
		return err
	}
	rp.mu.Lock()
	rp.position = seconds
	rp.mu.Unlock()
	return nil
}

func (rp *ReportedPlayer) Destroy() error {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.destroyed {
		return ErrPlayerDestroyed
	}
	rp.destroyed = true
	close(rp.commands)
	return nil
}

func (rp *ReportedPlayer) send(cmd Command) error {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.destroyed {
		return ErrPlayerDestroyed
	}
	select {
	case rp.commands <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}
