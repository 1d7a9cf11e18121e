package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/infrastructure/driver"
)

// table column layout of one entity kind, id first
type table struct {
	name    string
	columns []string
	values  func(entity interface{}) ([]interface{}, error)
}

var tables = map[domain.Kind]*table{
	domain.KindTopic: {
		name:    "topic",
		columns: []string{"id", "name", "category", "color", "cover_image_url", "sort_order", "created_at", "updated_at"},
		values: func(entity interface{}) ([]interface{}, error) {
			t, ok := asTopic(entity)
			if !ok {
				return nil, fmt.Errorf("expected topic, got %T", entity)
			}
			return []interface{}{t.ID, t.Name, t.Category, t.Color, t.CoverImageURL, t.Order, t.CreatedAt, t.UpdatedAt}, nil
		},
	},
	domain.KindContent: {
		name: "content",
		columns: []string{"id", "topic_id", "title", "description", "cover_image_url", "difficulty",
			"estimated_duration", "sort_order", "created_at", "updated_at"},
		values: func(entity interface{}) ([]interface{}, error) {
			c, ok := asContent(entity)
			if !ok {
				return nil, fmt.Errorf("expected content, got %T", entity)
			}
			return []interface{}{c.ID, c.TopicID, c.Title, c.Description, c.CoverImageURL, c.Difficulty,
				c.EstimatedDuration, c.Order, c.CreatedAt, c.UpdatedAt}, nil
		},
	},
	domain.KindLesson: {
		name:    "lesson",
		columns: []string{"id", "content_id", "title", "youtube_url", "description", "sort_order", "created_at", "updated_at"},
		values: func(entity interface{}) ([]interface{}, error) {
			l, ok := asLesson(entity)
			if !ok {
				return nil, fmt.Errorf("expected lesson, got %T", entity)
			}
			return []interface{}{l.ID, l.ContentID, l.Title, l.YoutubeURL, l.Description, l.Order, l.CreatedAt, l.UpdatedAt}, nil
		},
	},
}

func asTopic(entity interface{}) (*domain.Topic, bool) {
	switch v := entity.(type) {
	case domain.Topic:
		return &v, true
	case *domain.Topic:
		return v, v != nil
	}
	return nil, false
}

func asContent(entity interface{}) (*domain.Content, bool) {
	switch v := entity.(type) {
	case domain.Content:
		return &v, true
	case *domain.Content:
		return v, v != nil
	}
	return nil, false
}

func asLesson(entity interface{}) (*domain.Lesson, bool) {
	switch v := entity.(type) {
	case domain.Lesson:
		return &v, true
	case *domain.Lesson:
		return v, v != nil
	}
	return nil, false
}

func tableOf(kind domain.Kind) (*table, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind: %s", kind)
	}
	return t, nil
}

func placeholders(from, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(marks, ", ")
}

func (t *table) insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s)", t.name, strings.Join(t.columns, ", "), placeholders(1, len(t.columns)))
}

func (t *table) updateSQL() string {
	sets := make([]string, 0, len(t.columns)-1)
	for i, col := range t.columns[1:] {
		sets = append(sets, fmt.Sprintf("%s=$%d", col, i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id=$%d", t.name, strings.Join(sets, ", "), len(t.columns))
}

func (t *table) hasColumn(name string) bool {
	for _, col := range t.columns[1:] {
		if col == name {
			return true
		}
	}
	return false
}

// SQLBackend Backend over the topic, content and lesson tables
type SQLBackend struct {
	Conn driver.ITransactionalDB
}

var _ Backend = &SQLBackend{}

// NewSQLBackend create a SQLBackend over conn
func NewSQLBackend(conn driver.ITransactionalDB) *SQLBackend {
	return &SQLBackend{Conn: conn}
}

// CreateRecord insert one row
func (sb *SQLBackend) CreateRecord(ctx context.Context, kind domain.Kind, entity interface{}) error {
	t, err := tableOf(kind)
	if err != nil {
		return err
	}
	values, err := t.values(entity)
	if err != nil {
		return err
	}
	_, err = sb.Conn.ExecContext(ctx, t.insertSQL(), values...)
	return err
}

// UpdateRecord update the given columns of one row
func (sb *SQLBackend) UpdateRecord(ctx context.Context, kind domain.Kind, id string, fields map[string]interface{}) error {
	t, err := tableOf(kind)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	columns := make([]string, 0, len(fields))
	for col := range fields {
		if !t.hasColumn(col) {
			return fmt.Errorf("unknown %s column: %s", kind, col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	sets := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	for i, col := range columns {
		sets = append(sets, fmt.Sprintf("%s=$%d", col, i+1))
		args = append(args, fields[col])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id=$%d", t.name, strings.Join(sets, ", "), len(args))
	_, err = sb.Conn.ExecContext(ctx, query, args...)
	return err
}

// DeleteRecord delete one row, deleting a missing row is not an error
func (sb *SQLBackend) DeleteRecord(ctx context.Context, kind domain.Kind, id string) error {
	t, err := tableOf(kind)
	if err != nil {
		return err
	}
	_, err = sb.Conn.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id=$1", t.name), id)
	return err
}

// UpsertRecords insert or update every entity inside one transaction
func (sb *SQLBackend) UpsertRecords(ctx context.Context, kind domain.Kind, entities []interface{}) error {
	t, err := tableOf(kind)
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		return nil
	}
	return driver.WithTx(ctx, sb.Conn, func(tx driver.ITransactionalDB) error {
		for _, entity := range entities {
			values, err := t.values(entity)
			if err != nil {
				return err
			}
			exists, err := rowExists(ctx, tx, t.name, values[0])
			if err != nil {
				return err
			}
			if exists {
				args := append(append([]interface{}{}, values[1:]...), values[0])
				_, err = tx.ExecContext(ctx, t.updateSQL(), args...)
			} else {
				_, err = tx.ExecContext(ctx, t.insertSQL(), values...)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func rowExists(ctx context.Context, conn driver.ITransactionalDB, table string, id interface{}) (bool, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE id=$1", table), id)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	if rows.Next() {
		return true, nil
	}
	return false, rows.Err()
}

// FetchSnapshot read the three tables
func (sb *SQLBackend) FetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	snapshot := new(domain.Snapshot)
	conn := sb.Conn

	rows, err := conn.QueryContext(ctx, `
SELECT
    id, name, category, color, cover_image_url, sort_order, created_at, updated_at
FROM
    topic`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.Color, &t.CoverImageURL, &t.Order, &t.CreatedAt, &t.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		snapshot.Topics = append(snapshot.Topics, t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	rows, err = conn.QueryContext(ctx, `
SELECT
    id, topic_id, title, description, cover_image_url, difficulty, estimated_duration, sort_order, created_at, updated_at
FROM
    content`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c domain.Content
		if err := rows.Scan(&c.ID, &c.TopicID, &c.Title, &c.Description, &c.CoverImageURL, &c.Difficulty,
			&c.EstimatedDuration, &c.Order, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		snapshot.Contents = append(snapshot.Contents, c)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	rows, err = conn.QueryContext(ctx, `
SELECT
    id, content_id, title, youtube_url, description, sort_order, created_at, updated_at
FROM
    lesson`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.Lesson
		if err := rows.Scan(&l.ID, &l.ContentID, &l.Title, &l.YoutubeURL, &l.Description, &l.Order, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		snapshot.Lessons = append(snapshot.Lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
