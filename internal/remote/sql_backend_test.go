package remote

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/infrastructure/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRows yields rows in order, then reports err
type scriptedRows struct {
	rows [][]interface{}
	err  error
	pos  int
}

func (sr *scriptedRows) Next() bool {
	if sr.pos >= len(sr.rows) {
		return false
	}
	sr.pos++
	return true
}

func (sr *scriptedRows) Scan(dest ...interface{}) error {
	row := sr.rows[sr.pos-1]
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func (sr *scriptedRows) Close() error { return nil }
func (sr *scriptedRows) Err() error   { return sr.err }

// scriptedDB answers each query with the next scripted result set
type scriptedDB struct {
	results []*scriptedRows
}

var _ driver.ITransactionalDB = &scriptedDB{}

func (db *scriptedDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errors.New("not scripted")
}

func (db *scriptedDB) QueryContext(ctx context.Context, query string, args ...interface{}) (driver.ISQLRows, error) {
	if len(db.results) == 0 {
		return nil, errors.New("no scripted result left")
	}
	next := db.results[0]
	db.results = db.results[1:]
	return next, nil
}

func (db *scriptedDB) BeginTx(ctx context.Context, opts *driver.TxOptions) (driver.ITransactionalDB, error) {
	return db, nil
}
func (db *scriptedDB) Commit(ctx context.Context) error   { return nil }
func (db *scriptedDB) Rollback(ctx context.Context) error { return nil }
func (db *scriptedDB) Close(ctx context.Context) error    { return nil }
func (db *scriptedDB) Ping() error                        { return nil }

func lessonRow(id, contentID string) []interface{} {
	return []interface{}{id, contentID, "Lesson " + id, "https://youtu.be/" + id, "", 0, created, created}
}

func TestSQLBackend_FetchSnapshot(t *testing.T) {
	db := &scriptedDB{results: []*scriptedRows{
		{},
		{},
		{rows: [][]interface{}{lessonRow("L1", "C1"), lessonRow("L2", "C1")}},
	}}

	snapshot, err := NewSQLBackend(db).FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Lessons, 2)
	assert.Equal(t, "L2", snapshot.Lessons[1].ID)
	assert.Equal(t, created, snapshot.Lessons[1].CreatedAt)
}

func TestSQLBackend_FetchSnapshotInterruptedRead(t *testing.T) {
	reset := errors.New("connection reset by peer")
	db := &scriptedDB{results: []*scriptedRows{
		{},
		{},
		{rows: [][]interface{}{lessonRow("L1", "C1")}, err: reset},
	}}

	snapshot, err := NewSQLBackend(db).FetchSnapshot(context.Background())
	assert.ErrorIs(t, err, reset)
	assert.Nil(t, snapshot)
}

func TestBridge_InterruptedHydrateKeepsLocalState(t *testing.T) {
	db := &scriptedDB{results: []*scriptedRows{
		{},
		{},
		{rows: [][]interface{}{lessonRow("L1", "C1")}, err: errors.New("connection reset by peer")},
	}}
	bridge, catalog, _ := newTestBridge(t, NewSQLBackend(db))
	require.NoError(t, catalog.Topics.Insert(domain.Topic{ID: "T1", Name: "Math", CreatedAt: created}))
	require.NoError(t, catalog.Lessons.Insert(domain.Lesson{ID: "L1", ContentID: "C1", Title: "One", CreatedAt: created}))
	require.NoError(t, catalog.Lessons.Insert(domain.Lesson{ID: "L2", ContentID: "C1", Title: "Two", Order: 1, CreatedAt: created}))

	var remoteErr *domain.RemoteUnavailableError
	require.True(t, errors.As(bridge.Hydrate(context.Background()), &remoteErr))
	assert.Len(t, catalog.Topics.List(""), 1)
	assert.Len(t, catalog.Lessons.List("C1"), 2)
}
