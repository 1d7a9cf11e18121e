package handler

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/hierarchy"
	infra "github.com/pot-code/course-catalog/internal/infrastructure"
	"github.com/pot-code/course-catalog/internal/progress"
)

// StreamFrame one pushed snapshot. Closed is set on the last frame of a
// scope whose parent was deleted.
type StreamFrame struct {
	Kind   string      `json:"kind"`
	Scope  string      `json:"scope,omitempty"`
	Items  interface{} `json:"items,omitempty"`
	Closed bool        `json:"closed,omitempty"`
}

// latestFrame single slot mailbox, a newer snapshot replaces an unsent one
type latestFrame chan *StreamFrame

func newLatestFrame() latestFrame {
	return make(latestFrame, 1)
}

func (lf latestFrame) offer(frame *StreamFrame) {
	for {
		select {
		case lf <- frame:
			return
		default:
			select {
			case <-lf:
			default:
			}
		}
	}
}

// pump write frames until the peer leaves, ctx ends or done closes
func pump(ctx context.Context, conn *infra.WSConn, frames latestFrame, done <-chan struct{}, last *StreamFrame) error {
	gone := conn.Drain()
	for {
		select {
		case frame := <-frames:
			if err := conn.WriteJSON(frame); err != nil {
				return err
			}
		case <-done:
			select {
			case frame := <-frames:
				if err := conn.WriteJSON(frame); err != nil {
					return err
				}
			default:
			}
			return conn.WriteJSON(last)
		case <-gone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type StreamHandler struct {
	hierarchyService hierarchy.HierarchyService
	progressService  progress.ProgressService
}

func NewStreamHandler(
	HierarchyService hierarchy.HierarchyService,
	ProgressService progress.ProgressService,
) *StreamHandler {
	return &StreamHandler{HierarchyService, ProgressService}
}

func (sh *StreamHandler) HandleTopicStream(ctx context.Context, c echo.Context, conn *infra.WSConn) error {
	frames := newLatestFrame()
	kind := domain.KindTopic.String()
	sub := sh.hierarchyService.SubscribeTopics(func(items []domain.Topic) {
		frames.offer(&StreamFrame{Kind: kind, Items: items})
	})
	defer sub.Unsubscribe()
	return pump(ctx, conn, frames, sub.Done(), &StreamFrame{Kind: kind, Closed: true})
}

func (sh *StreamHandler) HandleContentStream(ctx context.Context, c echo.Context, conn *infra.WSConn) error {
	frames := newLatestFrame()
	kind, scope := domain.KindContent.String(), c.Param("id")
	sub := sh.hierarchyService.SubscribeContents(scope, func(items []domain.Content) {
		frames.offer(&StreamFrame{Kind: kind, Scope: scope, Items: items})
	})
	defer sub.Unsubscribe()
	return pump(ctx, conn, frames, sub.Done(), &StreamFrame{Kind: kind, Scope: scope, Closed: true})
}

func (sh *StreamHandler) HandleLessonStream(ctx context.Context, c echo.Context, conn *infra.WSConn) error {
	frames := newLatestFrame()
	kind, scope := domain.KindLesson.String(), c.Param("id")
	sub := sh.hierarchyService.SubscribeLessons(scope, func(items []domain.Lesson) {
		frames.offer(&StreamFrame{Kind: kind, Scope: scope, Items: items})
	})
	defer sub.Unsubscribe()
	return pump(ctx, conn, frames, sub.Done(), &StreamFrame{Kind: kind, Scope: scope, Closed: true})
}

func (sh *StreamHandler) HandleProgressStream(ctx context.Context, c echo.Context, conn *infra.WSConn) error {
	frames := newLatestFrame()
	scope := c.Param("participant_id")
	unsubscribe := sh.progressService.SubscribeProgress(scope, func(records []*domain.ProgressRecord) {
		frames.offer(&StreamFrame{Kind: "progress", Scope: scope, Items: records})
	})
	defer unsubscribe()
	return pump(ctx, conn, frames, nil, nil)
}
