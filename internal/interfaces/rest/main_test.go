package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/hierarchy"
	infra "github.com/pot-code/course-catalog/internal/infrastructure"
	"github.com/pot-code/course-catalog/internal/infrastructure/uuid"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
	"github.com/pot-code/course-catalog/internal/interfaces/rest/handler"
	"github.com/pot-code/course-catalog/internal/participant"
	"github.com/pot-code/course-catalog/internal/progress"
	"github.com/pot-code/course-catalog/internal/remote"
	"github.com/pot-code/course-catalog/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeParticipants struct {
	known map[string]*participant.Participant
}

func (fp *fakeParticipants) Enter(ctx context.Context, code string) (*participant.Participant, error) {
	if p, ok := fp.known[strings.ToUpper(code)]; ok {
		return p, nil
	}
	return nil, &domain.NotFoundError{Kind: "participant", ID: code}
}

func (fp *fakeParticipants) Register(ctx context.Context, in *participant.RegisterInput) (*participant.Participant, error) {
	if in.Nickname == "taken" {
		return nil, participant.ErrDuplicatedParticipant
	}
	return &participant.Participant{ID: "ABC123", FirstName: in.FirstName, LastName: in.LastName}, nil
}

type testServer struct {
	app       *echo.Echo
	catalog   *store.Catalog
	hierarchy *hierarchy.HierarchyServiceImpl
	progress  *progress.ProgressServiceImpl
}

func newTestServer(t *testing.T) *testServer {
	logger := zap.NewNop()
	metrics := remote.NewMetrics(nil)
	worker := remote.NewWorker(16, time.Second, logger, metrics)
	catalog := store.NewCatalog(store.WithLogger(logger))
	bridge := remote.NewBridge(catalog, nil, worker, metrics, logger)
	validator := validate.NewValidator()
	hs := hierarchy.NewHierarchyService(catalog, bridge, uuid.NewRandomGenerator(8), validator)
	ps := progress.NewProgressService(nil, worker, metrics, validator, logger)
	t.Cleanup(func() {
		bridge.Close()
		worker.Close()
		catalog.Close()
	})

	app := NewServer(&infra.AppConfig{Env: infra.EnvProduction}, &Dependencies{
		Gatherer:         prometheus.NewRegistry(),
		HierarchyService: hs,
		ProgressService:  ps,
		ParticipantUseCase: &fakeParticipants{known: map[string]*participant.Participant{
			"ABC123": {ID: "ABC123", Nickname: "Ace"},
		}},
		Policy: progress.DefaultPolicy(),
	}, logger)
	return &testServer{app, catalog, hs, ps}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ts.app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type topicList struct {
	Mode     string         `json:"mode"`
	Editable bool           `json:"editable"`
	Items    []domain.Topic `json:"items"`
}

func TestCatalog_ModeDecidesEditable(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/admin/topics", `{"name":"Math"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.Topic
	decode(t, rec, &created)
	assert.Equal(t, "Math", created.Name)
	assert.Equal(t, 0, created.Order)

	var browse topicList
	rec = ts.do(http.MethodGet, "/api/v1/catalog/topics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &browse)
	assert.Equal(t, "browse", browse.Mode)
	assert.False(t, browse.Editable)
	require.Len(t, browse.Items, 1)
	assert.Equal(t, created.ID, browse.Items[0].ID)

	var admin topicList
	decode(t, ts.do(http.MethodGet, "/api/v1/admin/topics", ""), &admin)
	assert.Equal(t, "admin", admin.Mode)
	assert.True(t, admin.Editable)
}

func TestCatalog_BrowseHasNoMutations(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/catalog/topics", `{"name":"Math"}`)
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code)
	assert.Empty(t, ts.catalog.Topics.All())
}

func TestCatalog_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	math, err := ts.hierarchy.CreateTopic(context.Background(), &hierarchy.CreateTopicInput{Name: "Math"})
	require.NoError(t, err)
	_, err = ts.hierarchy.CreateTopic(context.Background(), &hierarchy.CreateTopicInput{Name: "Art"})
	require.NoError(t, err)

	t.Run("not found", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/v1/catalog/topics/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body handler.RESTStandardError
		decode(t, rec, &body)
		assert.Equal(t, http.StatusNotFound, body.Code)
	})

	t.Run("validation", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/admin/topics", `{"name":"   "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body handler.RESTValidationError
		decode(t, rec, &body)
		require.NotEmpty(t, body.InvalidParams)
		assert.Equal(t, "name", body.InvalidParams[0].Domain)
	})

	t.Run("missing parent", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/admin/contents", `{"topic_id":"missing","title":"Algebra"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("reorder mismatch", func(t *testing.T) {
		rec := ts.do(http.MethodPut, "/api/v1/admin/topics/order", `{"ids":["`+math.ID+`"]}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/v1/nowhere", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCatalog_UpdateReorderDelete(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	math, err := ts.hierarchy.CreateTopic(ctx, &hierarchy.CreateTopicInput{Name: "Math"})
	require.NoError(t, err)
	art, err := ts.hierarchy.CreateTopic(ctx, &hierarchy.CreateTopicInput{Name: "Art"})
	require.NoError(t, err)

	rec := ts.do(http.MethodPatch, "/api/v1/admin/topics/"+math.ID, `{"color":"blue"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched domain.Topic
	decode(t, rec, &patched)
	assert.Equal(t, "blue", patched.Color)
	assert.Equal(t, "Math", patched.Name)

	rec = ts.do(http.MethodPut, "/api/v1/admin/topics/order", `{"ids":["`+art.ID+`","`+math.ID+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reordered topicList
	decode(t, rec, &reordered)
	require.Len(t, reordered.Items, 2)
	assert.Equal(t, art.ID, reordered.Items[0].ID)
	assert.Equal(t, 0, reordered.Items[0].Order)

	rec = ts.do(http.MethodDelete, "/api/v1/admin/topics/"+art.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodDelete, "/api/v1/admin/topics/"+art.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, ts.hierarchy.Topics(), 1)
}

func TestCatalog_NestedListing(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	math, err := ts.hierarchy.CreateTopic(ctx, &hierarchy.CreateTopicInput{Name: "Math"})
	require.NoError(t, err)

	rec := ts.do(http.MethodPost, "/api/v1/admin/contents", `{"topic_id":"`+math.ID+`","title":"Algebra"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var algebra domain.Content
	decode(t, rec, &algebra)

	rec = ts.do(http.MethodPost, "/api/v1/admin/lessons",
		`{"content_id":"`+algebra.ID+`","title":"Intro","youtube_url":"https://youtu.be/x"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var contents struct {
		Items []domain.Content `json:"items"`
	}
	decode(t, ts.do(http.MethodGet, "/api/v1/catalog/topics/"+math.ID+"/contents", ""), &contents)
	require.Len(t, contents.Items, 1)
	assert.Equal(t, "Algebra", contents.Items[0].Title)

	var lessons struct {
		Items []domain.Lesson `json:"items"`
	}
	decode(t, ts.do(http.MethodGet, "/api/v1/catalog/contents/"+algebra.ID+"/lessons", ""), &lessons)
	require.Len(t, lessons.Items, 1)
	assert.Equal(t, "Intro", lessons.Items[0].Title)
}

func TestProgress_SaveAndGet(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/progress/P1/L1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/progress",
		`{"participant_id":"P1","lesson_id":"L1","last_position":120,"duration":100,"completed":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved domain.ProgressRecord
	decode(t, rec, &saved)
	assert.Equal(t, 100.0, saved.LastPosition)
	assert.True(t, saved.Completed)

	rec = ts.do(http.MethodPost, "/api/v1/progress",
		`{"participant_id":"P1","lesson_id":"L1","last_position":10,"duration":100}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.ProgressRecord
	decode(t, ts.do(http.MethodGet, "/api/v1/progress/P1/L1", ""), &got)
	assert.True(t, got.Completed)

	var all []domain.ProgressRecord
	decode(t, ts.do(http.MethodGet, "/api/v1/progress/P1", ""), &all)
	assert.Len(t, all, 1)

	rec = ts.do(http.MethodPost, "/api/v1/progress", `{"participant_id":"","lesson_id":"L1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParticipants(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/participants/enter", `{"code":"abc123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entered handler.ParticipantResponse
	decode(t, rec, &entered)
	assert.Equal(t, "Ace", entered.DisplayName)

	rec = ts.do(http.MethodPost, "/api/v1/participants/enter", `{"code":"nobody"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/participants", `{"first_name":"Ada","last_name":"Lovelace"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var registered handler.ParticipantResponse
	decode(t, rec, &registered)
	assert.Equal(t, "Ada Lovelace", registered.DisplayName)

	rec = ts.do(http.MethodPost, "/api/v1/participants", `{"nickname":"taken"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLivenessAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/metrics", "").Code)
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

type topicFrame struct {
	Kind   string         `json:"kind"`
	Items  []domain.Topic `json:"items"`
	Closed bool           `json:"closed"`
}

func TestStream_Topics(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.app)
	defer srv.Close()

	conn := dial(t, srv, "/api/v1/ws/topics")
	var frame topicFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "topic", frame.Kind)
	assert.Empty(t, frame.Items)

	_, err := ts.hierarchy.CreateTopic(context.Background(), &hierarchy.CreateTopicInput{Name: "Math"})
	require.NoError(t, err)
	require.NoError(t, conn.ReadJSON(&frame))
	require.Len(t, frame.Items, 1)
	assert.Equal(t, "Math", frame.Items[0].Name)
}

func TestStream_ContentsClosedWithTopic(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.app)
	defer srv.Close()
	math, err := ts.hierarchy.CreateTopic(context.Background(), &hierarchy.CreateTopicInput{Name: "Math"})
	require.NoError(t, err)

	conn := dial(t, srv, "/api/v1/ws/topics/"+math.ID+"/contents")
	var frame struct {
		Scope  string `json:"scope"`
		Closed bool   `json:"closed"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, math.ID, frame.Scope)
	assert.False(t, frame.Closed)

	require.NoError(t, ts.hierarchy.DeleteTopic(context.Background(), math.ID))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.True(t, frame.Closed)
}

type playbackReply struct {
	Type     string                 `json:"type"`
	Progress *domain.ProgressRecord `json:"progress"`
	Error    string                 `json:"error"`
}

func TestPlayback_TracksProgress(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.app)
	defer srv.Close()
	ctx := context.Background()
	math, err := ts.hierarchy.CreateTopic(ctx, &hierarchy.CreateTopicInput{Name: "Math"})
	require.NoError(t, err)
	algebra, err := ts.hierarchy.CreateContent(ctx, &hierarchy.CreateContentInput{TopicID: math.ID, Title: "Algebra"})
	require.NoError(t, err)
	intro, err := ts.hierarchy.CreateLesson(ctx, &hierarchy.CreateLessonInput{
		ContentID: algebra.ID, Title: "Intro", YoutubeURL: "https://youtu.be/x",
	})
	require.NoError(t, err)

	conn := dial(t, srv, "/api/v1/ws/playback/P1")
	var reply playbackReply

	require.NoError(t, conn.WriteJSON(handler.PlaybackMessage{Type: "time", Position: 1, Duration: 100}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)

	require.NoError(t, conn.WriteJSON(handler.PlaybackMessage{Type: "attach", LessonID: intro.ID}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "attached", reply.Type)
	assert.Nil(t, reply.Progress)

	require.NoError(t, conn.WriteJSON(handler.PlaybackMessage{Type: "state", State: "paused", Position: 42, Duration: 100}))
	require.Eventually(t, func() bool {
		record, err := ts.progress.GetProgress(ctx, "P1", intro.ID)
		return err == nil && record != nil && record.LastPosition == 42
	}, 2*time.Second, 10*time.Millisecond)

	record, err := ts.progress.GetProgress(ctx, "P1", intro.ID)
	require.NoError(t, err)
	assert.Equal(t, algebra.ID, record.ContentID)
	assert.Equal(t, math.ID, record.TopicID)

	require.NoError(t, conn.WriteJSON(handler.PlaybackMessage{Type: "state", State: "ended", Position: 100, Duration: 100}))
	require.Eventually(t, func() bool {
		record, err := ts.progress.GetProgress(ctx, "P1", intro.ID)
		return err == nil && record != nil && record.Completed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPlaybackMessage_ToEvent(t *testing.T) {
	tests := []struct {
		name  string
		msg   handler.PlaybackMessage
		want  progress.Event
		isEvt bool
		err   bool
	}{
		{"ready", handler.PlaybackMessage{Type: "ready"}, progress.Ready{}, true, false},
		{"error", handler.PlaybackMessage{Type: "error", Code: 150}, progress.ErrorEvent{Code: 150}, true, false},
		{"state", handler.PlaybackMessage{Type: "state", State: "buffering"}, progress.StateChange{State: progress.StateBuffering}, true, false},
		{"bad state", handler.PlaybackMessage{Type: "state", State: "rewinding"}, nil, false, true},
		{"time", handler.PlaybackMessage{Type: "time"}, nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := tt.msg.ToEvent()
			assert.Equal(t, tt.err, err != nil)
			assert.Equal(t, tt.isEvt, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
