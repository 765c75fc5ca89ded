package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/security"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testEncryptor(t *testing.T) *security.Encryptor {
	t.Helper()
	enc, err := security.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return enc
}

func newSession(userID uuid.UUID, at time.Time) *domain.ReframingSession {
	analysisID := uuid.New()
	return &domain.ReframingSession{
		ID:                  uuid.New(),
		UserID:              userID,
		AnalysisID:          &analysisID,
		SelectedThought:     "I ruin everything",
		DistortionType:      "catastrophizing",
		Method:              domain.MethodEvidenceCheck,
		Background:          "Second year nursing student",
		History:             []domain.Turn{},
		MaxTurns:            12,
		PacingIntervalTurns: 3,
		Status:              domain.StatusActive,
		CreatedAt:           at,
		UpdatedAt:           at,
	}
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	enc := testEncryptor(t)
	repo := NewSessionRepository(db, enc)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	s := newSession(uuid.New(), now)
	require.NoError(t, repo.Create(ctx, s))

	s.History = append(s.History,
		domain.Turn{Role: domain.TurnRoleUser, Text: "I failed a quiz", Timestamp: now},
		domain.Turn{Role: domain.TurnRoleAssistant, Text: "What else happened this week?", Timestamp: now},
	)
	s.TurnCount = 1
	s.Status = domain.StatusAwaitingPacingChoice
	s.OfferedPacing = []domain.PacingOption{domain.PacingKeepReframing, domain.PacingVisualization}
	s.CandidateReframe = "One quiz is one quiz."
	s.UpdatedAt = now.Add(time.Second)
	require.NoError(t, repo.Update(ctx, s))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.SelectedThought, got.SelectedThought)
	assert.Equal(t, s.Background, got.Background)
	assert.Equal(t, *s.AnalysisID, *got.AnalysisID)
	assert.Equal(t, 1, got.TurnCount)
	assert.Equal(t, domain.StatusAwaitingPacingChoice, got.Status)
	assert.Equal(t, s.OfferedPacing, got.OfferedPacing)
	assert.Equal(t, "One quiz is one quiz.", got.CandidateReframe)
	require.Len(t, got.History, 2)
	assert.Equal(t, "What else happened this week?", got.History[1].Text)
	assert.True(t, got.UpdatedAt.Equal(s.UpdatedAt))
	assert.Nil(t, got.CompletedAt)
}

func TestSessionRepository_EncryptsAtRest(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepository(db, testEncryptor(t))
	ctx := context.Background()

	s := newSession(uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, s))

	var stored string
	require.NoError(t, db.Conn.QueryRowContext(ctx,
		`SELECT selected_thought FROM reframing_sessions WHERE id = ?`, s.ID.String(),
	).Scan(&stored))
	assert.NotContains(t, stored, "ruin")
	assert.True(t, strings.HasPrefix(stored, "enc:"))
}

func TestSessionRepository_NotFound(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t), nil)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepository_CompletedRowsAreFrozen(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t), nil)
	ctx := context.Background()

	now := time.Now()
	s := newSession(uuid.New(), now)
	require.NoError(t, repo.Create(ctx, s))

	s.Status = domain.StatusCompleted
	s.FinalReframedThought = "I can learn from this."
	s.CompletedAt = &now
	require.NoError(t, repo.Update(ctx, s))

	s.FinalReframedThought = "changed"
	assert.ErrorIs(t, repo.Update(ctx, s), domain.ErrSessionClosed)

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "I can learn from this.", got.FinalReframedThought)
	require.NotNil(t, got.CompletedAt)
}

func TestSessionRepository_ListByUser(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t), nil)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newSession(userID, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, newSession(uuid.New(), base)))

	sessions, err := repo.ListByUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.True(t, sessions[0].UpdatedAt.After(sessions[1].UpdatedAt))

	page, err := repo.ListByUser(ctx, userID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSummaryRepository_AppendAndList(t *testing.T) {
	repo := NewSummaryRepository(openTestDB(t), testEncryptor(t))
	ctx := context.Background()

	userID := uuid.New()
	first := &domain.CompletionSummary{
		ID:                   uuid.New(),
		SessionID:            uuid.New(),
		UserID:               userID,
		OriginalThought:      "I always fail",
		DistortionType:       "overgeneralization",
		Method:               domain.MethodBalancedThinking,
		FinalReframedThought: "Sometimes I struggle, and I also succeed.",
		Affirmation:          "Well done.",
		CompletedAt:          time.Now().Add(-time.Hour),
	}
	second := *first
	second.ID = uuid.New()
	second.SessionID = uuid.New()
	second.CompletedAt = time.Now()

	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, &second))
	// appending the same session twice is ignored
	dup := *first
	dup.ID = uuid.New()
	require.NoError(t, repo.Append(ctx, &dup))

	got, err := repo.ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.SessionID, got[0].SessionID)
	assert.Equal(t, "I always fail", got[1].OriginalThought)
	assert.Equal(t, domain.MethodBalancedThinking, got[1].Method)
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	now := time.Now()
	u := &domain.User{
		ID:           uuid.New(),
		Email:        "sam@example.com",
		DisplayName:  "Sam",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Create(ctx, u))

	exists, err := repo.EmailExists(ctx, "SAM@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := repo.GetByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Sam", got.DisplayName)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
