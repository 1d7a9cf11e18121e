package remote

import (
	"context"

	"github.com/pot-code/course-catalog/internal/domain"
)

// Backend the remote system of record for the catalog. Entities are passed
// as domain values (domain.Topic, domain.Content or domain.Lesson) and
// patches as column name to value maps.
type Backend interface {
	CreateRecord(ctx context.Context, kind domain.Kind, entity interface{}) error
	UpdateRecord(ctx context.Context, kind domain.Kind, id string, fields map[string]interface{}) error
	DeleteRecord(ctx context.Context, kind domain.Kind, id string) error
	UpsertRecords(ctx context.Context, kind domain.Kind, entities []interface{}) error
	FetchSnapshot(ctx context.Context) (*domain.Snapshot, error)
}
