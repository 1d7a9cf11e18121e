package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/hierarchy"
	infra "github.com/pot-code/course-catalog/internal/infrastructure"
	"github.com/pot-code/course-catalog/internal/infrastructure/logging"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
	"github.com/pot-code/course-catalog/internal/progress"
	"go.uber.org/zap"
)

// SaveProgressRequest ...
type SaveProgressRequest struct {
	ParticipantID string  `json:"participant_id"`
	LessonID      string  `json:"lesson_id"`
	ContentID     string  `json:"content_id"`
	TopicID       string  `json:"topic_id"`
	LastPosition  float64 `json:"last_position" validate:"min=0"`
	Duration      float64 `json:"duration" validate:"min=0"`
	Completed     bool    `json:"completed"`
}

// PlaybackMessage frame sent by a playback client. Type is one of attach,
// time, ready, state or error.
type PlaybackMessage struct {
	Type     string  `json:"type"`
	LessonID string  `json:"lesson_id,omitempty"`
	State    string  `json:"state,omitempty"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	Code     int     `json:"code,omitempty"`
}

// PlaybackReply frame sent to a playback client
type PlaybackReply struct {
	Type      string                 `json:"type"` // attached, command or error
	Command   *progress.Command      `json:"command,omitempty"`
	Progress  *domain.ProgressRecord `json:"progress,omitempty"`
	Completed bool                   `json:"completed,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// ToEvent player event carried by msg, false for attach and time frames
func (msg *PlaybackMessage) ToEvent() (progress.Event, bool, error) {
	switch msg.Type {
	case "ready":
		return progress.Ready{}, true, nil
	case "error":
		return progress.ErrorEvent{Code: msg.Code}, true, nil
	case "state":
		state, err := progress.ParseState(msg.State)
		if err != nil {
			return nil, false, err
		}
		return progress.StateChange{State: state}, true, nil
	}
	return nil, false, nil
}

type ProgressHandler struct {
	progressService  progress.ProgressService
	hierarchyService hierarchy.HierarchyService
	loader           *progress.ScriptLoader
	policy           progress.Policy
	validator        validate.Validator
}

func NewProgressHandler(
	ProgressService progress.ProgressService,
	HierarchyService hierarchy.HierarchyService,
	Loader *progress.ScriptLoader,
	Policy progress.Policy,
	Validator validate.Validator,
) *ProgressHandler {
	return &ProgressHandler{ProgressService, HierarchyService, Loader, Policy, Validator}
}

func (ph *ProgressHandler) HandleSaveProgress(c echo.Context) error {
	req := new(SaveProgressRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := validate.Check(ph.validator, req); err != nil {
		return err
	}
	record, err := ph.progressService.SaveProgress(c.Request().Context(), &domain.ProgressRecord{
		ParticipantID: req.ParticipantID,
		LessonID:      req.LessonID,
		ContentID:     req.ContentID,
		TopicID:       req.TopicID,
		LastPosition:  req.LastPosition,
		Duration:      req.Duration,
		Completed:     req.Completed,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

func (ph *ProgressHandler) HandleGetProgress(c echo.Context) error {
	participantID, lessonID := c.Param("participant_id"), c.Param("lesson_id")
	record, err := ph.progressService.GetProgress(c.Request().Context(), participantID, lessonID)
	if err != nil {
		return err
	}
	if record == nil {
		return &domain.NotFoundError{Kind: "progress", ID: participantID + "/" + lessonID}
	}
	return c.JSON(http.StatusOK, record)
}

func (ph *ProgressHandler) HandleListProgress(c echo.Context) error {
	records, err := ph.progressService.GetAllProgress(c.Request().Context(), c.Param("participant_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

// HandlePlayback drive a Tracker from a client side player. The client
// attaches to a lesson, then reports its clock and player events; seek,
// play and pause commands flow back on the same connection.
func (ph *ProgressHandler) HandlePlayback(ctx context.Context, c echo.Context, conn *infra.WSConn) error {
	logger := logging.ExtractLoggerFromContext(ctx)
	participantID := c.Param("participant_id")

	var player *progress.ReportedPlayer
	session := progress.NewSession(ph.loader, func(ctx context.Context, videoURL string) (progress.Player, error) {
		player = progress.NewReportedPlayer()
		go forwardCommands(conn, player)
		return player, nil
	}, ph.progressService, ph.policy, logger)
	defer session.Detach()

	for {
		msg := new(PlaybackMessage)
		if err := conn.ReadJSON(msg); err != nil {
			return err
		}

		if msg.Type == "attach" {
			if err := ph.attach(ctx, session, participantID, msg.LessonID, conn); err != nil {
				logger.Debug("playback attach failed", zap.String("progress.lesson_id", msg.LessonID), zap.Error(err))
				if err := conn.WriteJSON(&PlaybackReply{Type: "error", Error: err.Error()}); err != nil {
					return err
				}
			}
			continue
		}

		tracker := session.Current()
		if tracker == nil {
			if err := conn.WriteJSON(&PlaybackReply{Type: "error", Error: "no lesson attached"}); err != nil {
				return err
			}
			continue
		}
		player.Report(msg.Position, msg.Duration)
		event, ok, err := msg.ToEvent()
		if err != nil {
			if err := conn.WriteJSON(&PlaybackReply{Type: "error", Error: err.Error()}); err != nil {
				return err
			}
			continue
		}
		if ok {
			err = tracker.HandleEvent(ctx, event)
		} else {
			err = tracker.Evaluate(ctx, false)
		}
		if err != nil {
			if err := conn.WriteJSON(&PlaybackReply{Type: "error", Error: err.Error()}); err != nil {
				return err
			}
		}
	}
}

func (ph *ProgressHandler) attach(ctx context.Context, session *progress.Session, participantID, lessonID string, conn *infra.WSConn) error {
	lesson, err := ph.hierarchyService.Lesson(lessonID)
	if err != nil {
		return err
	}
	pair := progress.Pair{
		ParticipantID: participantID,
		LessonID:      lesson.ID,
		ContentID:     lesson.ContentID,
	}
	if content, err := ph.hierarchyService.Content(lesson.ContentID); err == nil {
		pair.TopicID = content.TopicID
	}
	tracker, err := session.Attach(ctx, pair, lesson.YoutubeURL)
	if err != nil {
		return err
	}
	// resume info only, the tracker already logged a failed lookup
	record, _ := ph.progressService.GetProgress(ctx, participantID, lesson.ID)
	return conn.WriteJSON(&PlaybackReply{Type: "attached", Progress: record, Completed: tracker.Completed()})
}

func forwardCommands(conn *infra.WSConn, player *progress.ReportedPlayer) {
	for cmd := range player.Commands() {
		cmd := cmd
		if err := conn.WriteJSON(&PlaybackReply{Type: "command", Command: &cmd}); err != nil {
			return
		}
	}
}
