package progress

import (
	"context"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/infrastructure/driver"
)

// SQLProgressBackend ProgressBackend over the lesson_progress table
type SQLProgressBackend struct {
	Conn driver.ITransactionalDB
}

var _ ProgressBackend = &SQLProgressBackend{}

// NewSQLProgressBackend ...
func NewSQLProgressBackend(conn driver.ITransactionalDB) *SQLProgressBackend {
	return &SQLProgressBackend{Conn: conn}
}

// SaveProgress upsert one record; a stored completion is kept
func (sb *SQLProgressBackend) SaveProgress(ctx context.Context, record *domain.ProgressRecord) error {
	return driver.WithTx(ctx, sb.Conn, func(tx driver.ITransactionalDB) error {
		rows, err := tx.QueryContext(ctx, `SELECT completed FROM lesson_progress
	WHERE participant_id=$1 AND lesson_id=$2`, record.ParticipantID, record.LessonID)
		if err != nil {
			return err
		}
		exists := rows.Next()
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}

		if !exists {
			_, err = tx.ExecContext(ctx, `INSERT INTO lesson_progress(participant_id, lesson_id, content_id, topic_id,
	last_position, duration, completed, updated_at)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
				record.ParticipantID, record.LessonID, record.ContentID, record.TopicID,
				record.LastPosition, record.Duration, record.Completed, record.UpdatedAt)
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE lesson_progress
	SET content_id=$1,
			topic_id=$2,
			last_position=CASE WHEN completed THEN duration ELSE $3 END,
			duration=$4,
			completed=(completed OR $5),
			updated_at=$6
	WHERE participant_id=$7 AND lesson_id=$8`,
			record.ContentID, record.TopicID, record.LastPosition, record.Duration, record.Completed,
			record.UpdatedAt, record.ParticipantID, record.LessonID)
		return err
	})
}

// GetProgress ...
func (sb *SQLProgressBackend) GetProgress(ctx context.Context, participantID, lessonID string) (*domain.ProgressRecord, error) {
	rows, err := sb.Conn.QueryContext(ctx, `
SELECT
    participant_id, lesson_id, content_id, topic_id, last_position, duration, completed, updated_at
FROM
    lesson_progress
WHERE
    participant_id = $1 AND lesson_id = $2`, participantID, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if rows.Next() {
		return scanProgress(rows)
	}
	return nil, rows.Err()
}

// GetAllProgress ...
func (sb *SQLProgressBackend) GetAllProgress(ctx context.Context, participantID string) ([]*domain.ProgressRecord, error) {
	rows, err := sb.Conn.QueryContext(ctx, `
SELECT
    participant_id, lesson_id, content_id, topic_id, last_position, duration, completed, updated_at
FROM
    lesson_progress
WHERE
    participant_id = $1
ORDER BY lesson_id`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.ProgressRecord
	for rows.Next() {
		record, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanProgress(rows driver.ISQLRows) (*domain.ProgressRecord, error) {
	r := new(domain.ProgressRecord)
	if err := rows.Scan(&r.ParticipantID, &r.LessonID, &r.ContentID, &r.TopicID,
		&r.LastPosition, &r.Duration, &r.Completed, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}
