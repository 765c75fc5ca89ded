package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/reframe-journal/internal/config"
	"github.com/Rrens/reframe-journal/internal/domain"
)

func TestSummaryArchive_AppendAndList(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	archive, err := NewSummaryArchive(ctx, config.MongoConfig{
		URI:        uri,
		Database:   "reframe_test",
		Collection: "session_history_" + uuid.NewString()[:8],
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		archive.collection.Drop(context.Background())
		archive.Close()
	})

	userID := uuid.New()
	summary := &domain.CompletionSummary{
		ID:                   uuid.New(),
		SessionID:            uuid.New(),
		UserID:               userID,
		OriginalThought:      "Nobody likes me",
		DistortionType:       "mind reading",
		Method:               domain.MethodEvidenceCheck,
		FinalReframedThought: "Two friends texted me this week.",
		Affirmation:          "Nice work.",
		CompletedAt:          time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, archive.Append(ctx, summary))
	require.NoError(t, archive.Append(ctx, summary))

	got, err := archive.ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, summary.FinalReframedThought, got[0].FinalReframedThought)
	assert.True(t, summary.CompletedAt.Equal(got[0].CompletedAt))
}
