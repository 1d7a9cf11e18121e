package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/infrastructure/driver"
)

// KVProgressBackend ProgressBackend over one hash per participant, field is
// the lesson id and the value the JSON encoded record
type KVProgressBackend struct {
	KV     driver.KeyValueDB
	Prefix string
}

var _ ProgressBackend = &KVProgressBackend{}

// NewKVProgressBackend ...
func NewKVProgressBackend(kv driver.KeyValueDB) *KVProgressBackend {
	return &KVProgressBackend{KV: kv, Prefix: "progress:"}
}

func (kb *KVProgressBackend) key(participantID string) string {
	return kb.Prefix + participantID
}

// SaveProgress merge into the stored value, keeping completion sticky
func (kb *KVProgressBackend) SaveProgress(ctx context.Context, record *domain.ProgressRecord) error {
	merged := *record
	stored, err := kb.GetProgress(ctx, record.ParticipantID, record.LessonID)
	if err != nil {
		return err
	}
	if stored != nil {
		stored.Merge(record)
		merged = *stored
	}
	value, err := json.Marshal(&merged)
	if err != nil {
		return err
	}
	return kb.KV.HSet(ctx, kb.key(record.ParticipantID), record.LessonID, string(value))
}

// GetProgress ...
func (kb *KVProgressBackend) GetProgress(ctx context.Context, participantID, lessonID string) (*domain.ProgressRecord, error) {
	value, ok, err := kb.KV.HGet(ctx, kb.key(participantID), lessonID)
	if err != nil || !ok {
		return nil, err
	}
	return decodeProgress(lessonID, value)
}

// GetAllProgress ...
func (kb *KVProgressBackend) GetAllProgress(ctx context.Context, participantID string) ([]*domain.ProgressRecord, error) {
	values, err := kb.KV.HGetAll(ctx, kb.key(participantID))
	if err != nil {
		return nil, err
	}
	result := make([]*domain.ProgressRecord, 0, len(values))
	for lessonID, value := range values {
		record, err := decodeProgress(lessonID, value)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LessonID < result[j].LessonID
	})
	return result, nil
}

func decodeProgress(lessonID, value string) (*domain.ProgressRecord, error) {
	record := new(domain.ProgressRecord)
	if err := json.Unmarshal([]byte(value), record); err != nil {
		return nil, fmt.Errorf("decode progress of lesson %s: %w", lessonID, err)
	}
	return record, nil
}
