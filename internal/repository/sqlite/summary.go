package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/security"
)

// SummaryRepository implements domain.SummaryRepository on SQLite
type SummaryRepository struct {
	db  *DB
	enc *security.Encryptor
}

// NewSummaryRepository creates a new completion summary repository
func NewSummaryRepository(db *DB, enc *security.Encryptor) *SummaryRepository {
	return &SummaryRepository{db: db, enc: enc}
}

// Append stores a summary. Appending the same session twice is a no-op.
func (r *SummaryRepository) Append(ctx context.Context, summary *domain.CompletionSummary) error {
	original, err := r.enc.SealText(summary.OriginalThought)
	if err != nil {
		return fmt.Errorf("failed to seal original thought: %w", err)
	}
	final, err := r.enc.SealText(summary.FinalReframedThought)
	if err != nil {
		return fmt.Errorf("failed to seal final thought: %w", err)
	}

	query := `
		INSERT INTO completion_summaries
			(id, session_id, user_id, original_thought, distortion_type, method,
			 final_reframed_thought, affirmation, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO NOTHING
	`
	_, err = r.db.Conn.ExecContext(ctx, query,
		summary.ID.String(),
		summary.SessionID.String(),
		summary.UserID.String(),
		original,
		summary.DistortionType,
		string(summary.Method),
		final,
		summary.Affirmation,
		formatTime(summary.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append completion summary: %w", err)
	}
	return nil
}

// ListByUser returns the user's summaries, newest first
func (r *SummaryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CompletionSummary, error) {
	query := `
		SELECT id, session_id, user_id, original_thought, distortion_type, method,
		       final_reframed_thought, affirmation, completed_at
		FROM completion_summaries
		WHERE user_id = ?
		ORDER BY completed_at DESC
		LIMIT ?
	`
	rows, err := r.db.Conn.QueryContext(ctx, query, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completion summaries: %w", err)
	}
	defer rows.Close()

	summaries := []domain.CompletionSummary{}
	for rows.Next() {
		var s domain.CompletionSummary
		var id, sessionID, uid, method, original, final, completedAt string
		if err := rows.Scan(
			&id, &sessionID, &uid, &original, &s.DistortionType, &method,
			&final, &s.Affirmation, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan completion summary: %w", err)
		}

		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid summary id: %w", err)
		}
		if s.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, fmt.Errorf("invalid session id: %w", err)
		}
		if s.UserID, err = uuid.Parse(uid); err != nil {
			return nil, fmt.Errorf("invalid user id: %w", err)
		}
		if s.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, err
		}
		if s.OriginalThought, err = r.enc.OpenText(original); err != nil {
			return nil, fmt.Errorf("failed to open original thought: %w", err)
		}
		if s.FinalReframedThought, err = r.enc.OpenText(final); err != nil {
			return nil, fmt.Errorf("failed to open final thought: %w", err)
		}
		s.Method = domain.Method(method)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
