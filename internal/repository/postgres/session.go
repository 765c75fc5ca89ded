package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/security"
)

// SessionRepository implements domain.ReframingRepository. Free-text columns
// and the turn history are sealed with the encryptor when one is configured.
type SessionRepository struct {
	db  *DB
	enc *security.Encryptor
}

// NewSessionRepository creates a new reframing session repository
func NewSessionRepository(db *DB, enc *security.Encryptor) *SessionRepository {
	return &SessionRepository{db: db, enc: enc}
}

const sessionColumns = `
	id, user_id, analysis_id, selected_thought, distortion_type, method, background,
	history, turn_count, max_turns, pacing_interval_turns, status, candidate_reframe,
	offered_pacing, final_reframed_thought, completed_at, created_at, updated_at`

// sealedSession holds the stored form of the encrypted columns
type sealedSession struct {
	thought    string
	background string
	history    []byte
	candidate  string
	final      string
}

func (r *SessionRepository) seal(s *domain.ReframingSession) (*sealedSession, error) {
	var out sealedSession
	var err error

	if out.thought, err = r.enc.SealText(s.SelectedThought); err != nil {
		return nil, fmt.Errorf("failed to seal thought: %w", err)
	}
	if out.background, err = r.enc.SealText(s.Background); err != nil {
		return nil, fmt.Errorf("failed to seal background: %w", err)
	}
	if out.history, err = r.enc.SealJSON(s.History); err != nil {
		return nil, fmt.Errorf("failed to seal history: %w", err)
	}
	if out.candidate, err = r.enc.SealText(s.CandidateReframe); err != nil {
		return nil, fmt.Errorf("failed to seal candidate reframe: %w", err)
	}
	if out.final, err = r.enc.SealText(s.FinalReframedThought); err != nil {
		return nil, fmt.Errorf("failed to seal final thought: %w", err)
	}
	return &out, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ReframingSession) error {
	sealed, err := r.seal(session)
	if err != nil {
		return err
	}

	query := `INSERT INTO reframing_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.Pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.AnalysisID,
		sealed.thought,
		session.DistortionType,
		string(session.Method),
		sealed.background,
		sealed.history,
		session.TurnCount,
		session.MaxTurns,
		session.PacingIntervalTurns,
		string(session.Status),
		sealed.candidate,
		pacingToStrings(session.OfferedPacing),
		sealed.final,
		session.CompletedAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reframing session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ReframingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM reframing_sessions WHERE id = $1`

	s, err := r.scan(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get reframing session: %w", err)
	}
	return s, nil
}

// Update writes the mutable part of a session. Rows that are already
// completed are never rewritten.
func (r *SessionRepository) Update(ctx context.Context, session *domain.ReframingSession) error {
	sealed, err := r.seal(session)
	if err != nil {
		return err
	}

	query := `
		UPDATE reframing_sessions
		SET history = $1, turn_count = $2, status = $3, candidate_reframe = $4,
		    offered_pacing = $5, final_reframed_thought = $6, completed_at = $7, updated_at = $8
		WHERE id = $9 AND status <> 'completed'
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		sealed.history,
		session.TurnCount,
		string(session.Status),
		sealed.candidate,
		pacingToStrings(session.OfferedPacing),
		sealed.final,
		session.CompletedAt,
		session.UpdatedAt,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reframing session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionClosed
	}
	return nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ReframingSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM reframing_sessions
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reframing sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.ReframingSession{}
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reframing session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) scan(row pgx.Row) (*domain.ReframingSession, error) {
	var s domain.ReframingSession
	var method, status string
	var sealed sealedSession
	var offered []string

	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.AnalysisID,
		&sealed.thought,
		&s.DistortionType,
		&method,
		&sealed.background,
		&sealed.history,
		&s.TurnCount,
		&s.MaxTurns,
		&s.PacingIntervalTurns,
		&status,
		&sealed.candidate,
		&offered,
		&sealed.final,
		&s.CompletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	s.Method = domain.Method(method)
	s.Status = domain.SessionStatus(status)
	s.OfferedPacing = stringsToPacing(offered)

	var err error
	if s.SelectedThought, err = r.enc.OpenText(sealed.thought); err != nil {
		return nil, fmt.Errorf("failed to open thought: %w", err)
	}
	if s.Background, err = r.enc.OpenText(sealed.background); err != nil {
		return nil, fmt.Errorf("failed to open background: %w", err)
	}
	if err := r.enc.OpenJSON(sealed.history, &s.History); err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if s.CandidateReframe, err = r.enc.OpenText(sealed.candidate); err != nil {
		return nil, fmt.Errorf("failed to open candidate reframe: %w", err)
	}
	if s.FinalReframedThought, err = r.enc.OpenText(sealed.final); err != nil {
		return nil, fmt.Errorf("failed to open final thought: %w", err)
	}
	return &s, nil
}

func pacingToStrings(opts []domain.PacingOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, string(o))
	}
	return out
}

func stringsToPacing(opts []string) []domain.PacingOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]domain.PacingOption, 0, len(opts))
	for _, o := range opts {
		out = append(out, domain.PacingOption(o))
	}
	return out
}
