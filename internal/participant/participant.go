package participant

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrDuplicatedParticipant code already taken
var ErrDuplicatedParticipant = errors.New("participant code already exists")

// Participant a learner, identified by the access code in ID
type Participant struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Nickname     string    `json:"nickname"`
	Age          int       `json:"age,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	School       string    `json:"school,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// DisplayName nickname, then the full name, then whichever name part is
// set, then the code
func (p *Participant) DisplayName() string {
	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)
	switch {
	case strings.TrimSpace(p.Nickname) != "":
		return strings.TrimSpace(p.Nickname)
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}
	return p.ID
}

// RegisterInput new participant, the code is generated
type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Nickname  string `json:"nickname"`
	Age       int    `json:"age" validate:"omitempty,min=1,max=150"`
	Gender    string `json:"gender"`
	School    string `json:"school"`
}

// ParticipantRepository ...
type ParticipantRepository interface {
	// FindByCode returns nil, nil when no participant has code
	FindByCode(ctx context.Context, code string) (*Participant, error)
	Save(ctx context.Context, p *Participant) error
	TouchLastActive(ctx context.Context, code string, at time.Time) error
}

// ParticipantUseCase ...
type ParticipantUseCase interface {
	Enter(ctx context.Context, code string) (*Participant, error)
	Register(ctx context.Context, in *RegisterInput) (*Participant, error)
}
