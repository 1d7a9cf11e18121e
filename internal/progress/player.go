package progress

import "fmt"

// PlayerState playback state reported by the player
type PlayerState int

// player states
const (
	StateUnstarted PlayerState = iota
	StatePlaying
	StatePaused
	StateBuffering
	StateEnded
)

var stateNames = map[PlayerState]string{
	StateUnstarted: "unstarted",
	StatePlaying:   "playing",
	StatePaused:    "paused",
	StateBuffering: "buffering",
	StateEnded:     "ended",
}

func (s PlayerState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState parse a state name
func ParseState(name string) (PlayerState, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return StateUnstarted, fmt.Errorf("unknown player state: %s", name)
}

// Player the host video player
type Player interface {
	Play() error
	Pause() error
	CurrentTime() float64 // seconds
	Duration() float64    // seconds, <= 0 while unknown
	SeekTo(seconds float64) error
	Destroy() error
}

// Event one player notification. The set is closed: StateChange, Ready
// and ErrorEvent.
type Event interface {
	playerEvent()
}

// StateChange the player entered State
type StateChange struct {
	State PlayerState
}

// Ready the player can accept commands
type Ready struct{}

// ErrorEvent the player reported an error code
type ErrorEvent struct {
	Code int
}

func (StateChange) playerEvent() {}
func (Ready) playerEvent()       {}
func (ErrorEvent) playerEvent()  {}
