package progress

import (
	"context"
	"sync"

	"github.com/pot-code/course-catalog/internal/domain"
	"go.uber.org/zap"
)

// PlayerFactory create a player for videoURL
type PlayerFactory func(ctx context.Context, videoURL string) (Player, error)

// Session owns at most one Tracker, the one of the lesson being watched
type Session struct {
	loader    *ScriptLoader
	newPlayer PlayerFactory
	saver     Saver
	policy    Policy
	opts      []TrackerOption
	logger    *zap.Logger

	mu       sync.Mutex
	tracker  *Tracker
	videoURL string
}

// NewSession create a session, loader may be nil when the player needs no
// script
func NewSession(loader *ScriptLoader, newPlayer PlayerFactory, saver Saver, policy Policy, logger *zap.Logger, opts ...TrackerOption) *Session {
	return &Session{
		loader:    loader,
		newPlayer: newPlayer,
		saver:     saver,
		policy:    policy,
		opts:      append([]TrackerOption{WithTrackerLogger(logger)}, opts...),
		logger:    logger,
	}
}

// Attach track pair playing videoURL. The current tracker is kept when
// neither the pair nor the url changed, otherwise it is torn down first.
func (s *Session) Attach(ctx context.Context, pair Pair, videoURL string) (*Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracker != nil && s.tracker.Pair() == pair && s.videoURL == videoURL {
		return s.tracker, nil
	}
	s.teardown()

	if s.loader != nil {
		if err := s.loader.Load(ctx); err != nil {
			return nil, err
		}
	}
	player, err := s.newPlayer(ctx, videoURL)
	if err != nil {
		return nil, &domain.PlayerIntegrationError{Reason: "failed to create player", Err: err}
	}
	tracker := NewTracker(pair, player, s.saver, s.policy, s.opts...)
	if err := tracker.Mount(ctx); err != nil {
		// start from scratch, saves still merge with the stored record
		s.logger.Warn("tracking without saved progress", zap.Error(err))
	}
	s.tracker, s.videoURL = tracker, videoURL
	return tracker, nil
}

// Current the attached tracker, nil when detached
func (s *Session) Current() *Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker
}

// Detach tear down the current tracker
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown()
}

func (s *Session) teardown() {
	if s.tracker == nil {
		return
	}
	s.tracker.Close()
	s.tracker, s.videoURL = nil, ""
}
