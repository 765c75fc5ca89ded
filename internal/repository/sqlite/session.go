package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/security"
)

// SessionRepository implements domain.ReframingRepository on SQLite
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

func (r *SessionRepository) Create(ctx context.Context, s *domain.ReframingSession) error {
	thought, err := r.enc.SealText(s.SelectedThought)
	if err != nil {
		return fmt.Errorf("failed to seal thought: %w", err)
	}
	background, err := r.enc.SealText(s.Background)
	if err != nil {
		return fmt.Errorf("failed to seal background: %w", err)
	}
	history, err := r.enc.SealJSON(s.History)
	if err != nil {
		return fmt.Errorf("failed to seal history: %w", err)
	}
	candidate, err := r.enc.SealText(s.CandidateReframe)
	if err != nil {
		return fmt.Errorf("failed to seal candidate reframe: %w", err)
	}
	final, err := r.enc.SealText(s.FinalReframedThought)
	if err != nil {
		return fmt.Errorf("failed to seal final thought: %w", err)
	}

	query := `INSERT INTO reframing_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Conn.ExecContext(ctx, query,
		s.ID.String(),
		s.UserID.String(),
		nullUUID(s.AnalysisID),
		thought,
		s.DistortionType,
		string(s.Method),
		background,
		history,
		s.TurnCount,
		s.MaxTurns,
		s.PacingIntervalTurns,
		string(s.Status),
		candidate,
		joinPacing(s.OfferedPacing),
		final,
		nullTime(s),
		formatTime(s.CreatedAt),
		formatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create reframing session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ReframingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM reframing_sessions WHERE id = ?`

	s, err := r.scan(r.db.Conn.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get reframing session: %w", err)
	}
	return s, nil
}

// Update writes the mutable part of a session. Completed rows are frozen.
func (r *SessionRepository) Update(ctx context.Context, s *domain.ReframingSession) error {
	history, err := r.enc.SealJSON(s.History)
	if err != nil {
		return fmt.Errorf("failed to seal history: %w", err)
	}
	candidate, err := r.enc.SealText(s.CandidateReframe)
	if err != nil {
		return fmt.Errorf("failed to seal candidate reframe: %w", err)
	}
	final, err := r.enc.SealText(s.FinalReframedThought)
	if err != nil {
		return fmt.Errorf("failed to seal final thought: %w", err)
	}

	query := `
		UPDATE reframing_sessions
		SET history = ?, turn_count = ?, status = ?, candidate_reframe = ?,
		    offered_pacing = ?, final_reframed_thought = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status <> 'completed'
	`
	res, err := r.db.Conn.ExecContext(ctx, query,
		history,
		s.TurnCount,
		string(s.Status),
		candidate,
		joinPacing(s.OfferedPacing),
		final,
		nullTime(s),
		formatTime(s.UpdatedAt),
		s.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update reframing session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionClosed
	}
	return nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ReframingSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM reframing_sessions
		WHERE user_id = ?
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.Conn.QueryContext(ctx, query, userID.String(), limit, offset)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SessionRepository) scan(row rowScanner) (*domain.ReframingSession, error) {
	var (
		s                                domain.ReframingSession
		id, userID, method, status       string
		thought, background, candidate   string
		final, offered, created, updated string
		analysisID, completedAt          sql.NullString
		history                          []byte
	)

	if err := row.Scan(
		&id, &userID, &analysisID, &thought, &s.DistortionType, &method, &background,
		&history, &s.TurnCount, &s.MaxTurns, &s.PacingIntervalTurns, &status, &candidate,
		&offered, &final, &completedAt, &created, &updated,
	); err != nil {
		return nil, err
	}

	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	if s.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if analysisID.Valid {
		aid, err := uuid.Parse(analysisID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid analysis id: %w", err)
		}
		s.AnalysisID = &aid
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		s.CompletedAt = &t
	}
	if s.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}

	s.Method = domain.Method(method)
	s.Status = domain.SessionStatus(status)
	s.OfferedPacing = splitPacing(offered)

	if s.SelectedThought, err = r.enc.OpenText(thought); err != nil {
		return nil, fmt.Errorf("failed to open thought: %w", err)
	}
	if s.Background, err = r.enc.OpenText(background); err != nil {
		return nil, fmt.Errorf("failed to open background: %w", err)
	}
	if err := r.enc.OpenJSON(history, &s.History); err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if s.CandidateReframe, err = r.enc.OpenText(candidate); err != nil {
		return nil, fmt.Errorf("failed to open candidate reframe: %w", err)
	}
	if s.FinalReframedThought, err = r.enc.OpenText(final); err != nil {
		return nil, fmt.Errorf("failed to open final thought: %w", err)
	}
	return &s, nil
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullTime(s *domain.ReframingSession) sql.NullString {
	if s.CompletedAt == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*s.CompletedAt), Valid: true}
}

func joinPacing(opts []domain.PacingOption) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		parts = append(parts, string(o))
	}
	return strings.Join(parts, ",")
}

func splitPacing(s string) []domain.PacingOption {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	opts := make([]domain.PacingOption, 0, len(parts))
	for _, p := range parts {
		opts = append(opts, domain.PacingOption(p))
	}
	return opts
}
