package domain

import (
	"context"
	"time"
)

// ProgressRecord playback progress of one participant on one lesson
type ProgressRecord struct {
	ParticipantID string    `json:"participant_id"`
	LessonID      string    `json:"lesson_id"`
	ContentID     string    `json:"content_id,omitempty"`
	TopicID       string    `json:"topic_id,omitempty"`
	LastPosition  float64   `json:"last_position"` // seconds
	Duration      float64   `json:"duration"`      // seconds
	Completed     bool      `json:"completed"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProgressKey identifies a ProgressRecord
type ProgressKey struct {
	ParticipantID string
	LessonID      string
}

func (r *ProgressRecord) Key() ProgressKey {
	return ProgressKey{r.ParticipantID, r.LessonID}
}

// Merge folds an incoming write into the stored record. Completion is sticky
// and the position never exceeds a known duration.
func (r *ProgressRecord) Merge(in *ProgressRecord) {
	completed := r.Completed || in.Completed
	r.ContentID = firstNonEmpty(in.ContentID, r.ContentID)
	r.TopicID = firstNonEmpty(in.TopicID, r.TopicID)
	if in.Duration > 0 {
		r.Duration = in.Duration
	}
	r.LastPosition = in.LastPosition
	if completed && !in.Completed && r.Duration > 0 {
		// a stale non-completed write must not pull a finished lesson back
		r.LastPosition = r.Duration
	}
	r.Completed = completed
	r.Clamp()
	r.UpdatedAt = in.UpdatedAt
}

// Clamp keeps LastPosition within [0, Duration] once the duration is known
func (r *ProgressRecord) Clamp() {
	if r.LastPosition < 0 {
		r.LastPosition = 0
	}
	if r.Duration > 0 && r.LastPosition > r.Duration {
		r.LastPosition = r.Duration
	}
}

// ProgressRepository persistence contract for progress records
type ProgressRepository interface {
	SaveProgress(ctx context.Context, record *ProgressRecord) (*ProgressRecord, error)
	GetProgress(ctx context.Context, participantID, lessonID string) (*ProgressRecord, error)
	GetAllProgress(ctx context.Context, participantID string) ([]*ProgressRecord, error)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
