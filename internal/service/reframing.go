package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/reframe"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// SessionCache is an optional read-through cache in front of the session store
type SessionCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ReframingSession, error)
	Set(ctx context.Context, session *domain.ReframingSession) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// ReframingService drives reframing sessions: it loads a session, runs the
// controller, persists the result and archives the completion summary.
type ReframingService struct {
	controller *reframe.Controller
	sessions   domain.ReframingRepository
	summaries  domain.SummaryRepository
	cache      SessionCache
	locks      *sessionLocks
}

// NewReframingService creates a new reframing service. cache may be nil.
func NewReframingService(
	controller *reframe.Controller,
	sessions domain.ReframingRepository,
	summaries domain.SummaryRepository,
	cache SessionCache,
) *ReframingService {
	return &ReframingService{
		controller: controller,
		sessions:   sessions,
		summaries:  summaries,
		cache:      cache,
		locks:      newSessionLocks(),
	}
}

// Start creates a new session for the user
func (s *ReframingService) Start(ctx context.Context, userID uuid.UUID, req domain.StartSessionRequest) (*domain.ReframingSession, error) {
	session, err := s.controller.StartSession(reframe.StartInput{
		UserID:          userID,
		AnalysisID:      req.AnalysisID,
		SelectedThought: req.SelectedThought,
		DistortionType:  req.DistortionType,
		Method:          req.Method,
		Background:      req.Background,
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.cacheSet(ctx, session)

	log.Info().
		Str("session_id", session.ID.String()).
		Str("user_id", userID.String()).
		Str("method", string(session.Method)).
		Msg("reframing session started")

	return session, nil
}

// SendMessage runs one dialogue turn. Calls for the same session are
// serialized, and the turn is saved even if the caller goes away.
func (s *ReframingService) SendMessage(ctx context.Context, userID, sessionID uuid.UUID, req domain.SendMessageRequest) (*reframe.Reply, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	reply, err := s.controller.ReceiveMessage(ctx, session, reframe.MessageInput{
		Text:                   req.Text,
		HasAlternativeThoughts: req.HasAlternativeThoughts,
	})
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, session, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// ChoosePacing applies a pacing menu selection
func (s *ReframingService) ChoosePacing(ctx context.Context, userID, sessionID uuid.UUID, req domain.PacingChoiceRequest) (*reframe.Reply, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	reply, err := s.controller.ChoosePacing(session, domain.PacingOption(req.Option))
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, session, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// GetSession returns a session owned by the user
func (s *ReframingService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*domain.ReframingSession, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("session cache read failed")
		}
		if cached != nil {
			if cached.UserID != userID {
				return nil, domain.ErrSessionNotFound
			}
			return cached, nil
		}
	}

	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, session)
	return session, nil
}

// ListSessions returns the user's sessions, most recently updated first
func (s *ReframingService) ListSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ReframingSession, error) {
	if offset < 0 {
		offset = 0
	}
	sessions, err := s.sessions.ListByUser(ctx, userID, clampLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// ListSummaries returns the user's completed-session summaries
func (s *ReframingService) ListSummaries(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CompletionSummary, error) {
	summaries, err := s.summaries.ListByUser(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	return summaries, nil
}

// load reads from the primary store. Sessions of other users are reported
// as not found.
func (s *ReframingService) load(ctx context.Context, userID, sessionID uuid.UUID) (*domain.ReframingSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != userID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *ReframingService) save(ctx context.Context, session *domain.ReframingSession, reply *reframe.Reply) error {
	if !reply.Mutated {
		return nil
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		s.cacheInvalidate(ctx, session.ID)
		if errors.Is(err, domain.ErrSessionClosed) {
			return err
		}
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.cacheSet(ctx, session)

	if reply.Summary != nil {
		// The session is already stored as completed, so a failed append is
		// logged rather than returned.
		if err := s.summaries.Append(ctx, reply.Summary); err != nil {
			log.Error().
				Err(err).
				Str("session_id", session.ID.String()).
				Msg("failed to archive completion summary")
		} else {
			log.Info().
				Str("session_id", session.ID.String()).
				Int("turn_count", session.TurnCount).
				Bool("reached_turn_limit", reply.ReachedTurnLimit).
				Msg("reframing session completed")
		}
	}
	return nil
}

func (s *ReframingService) cacheSet(ctx context.Context, session *domain.ReframingSession) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, session); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("session cache write failed")
	}
}

func (s *ReframingService) cacheInvalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.Warn().Err(err).Str("session_id", id.String()).Msg("session cache invalidate failed")
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
