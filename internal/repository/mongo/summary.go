package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rrens/reframe-journal/internal/config"
	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/security"
)

// SummaryArchive stores completion summaries in the user's session history
// collection. It implements domain.SummaryRepository.
type SummaryArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	enc        *security.Encryptor
	timeout    time.Duration
}

type summaryDocument struct {
	ID                   string    `bson:"_id"`
	SessionID            string    `bson:"session_id"`
	UserID               string    `bson:"user_id"`
	OriginalThought      string    `bson:"original_thought"`
	DistortionType       string    `bson:"distortion_type"`
	Method               string    `bson:"method"`
	FinalReframedThought string    `bson:"final_reframed_thought"`
	Affirmation          string    `bson:"affirmation"`
	CompletedAt          time.Time `bson:"completed_at"`
}

// NewSummaryArchive connects to MongoDB and ensures the collection indexes
func NewSummaryArchive(ctx context.Context, cfg config.MongoConfig, enc *security.Encryptor) (*SummaryArchive, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	clientOpts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "completed_at", Value: -1}}},
	}
	if _, err := collection.Indexes().CreateMany(pingCtx, indexes); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create summary indexes: %w", err)
	}

	return &SummaryArchive{
		client:     client,
		collection: collection,
		enc:        enc,
		timeout:    timeout,
	}, nil
}

// Close disconnects the client
func (a *SummaryArchive) Close() error {
	return a.client.Disconnect(context.Background())
}

// Ping verifies connectivity
func (a *SummaryArchive) Ping(ctx context.Context) error {
	return a.client.Ping(ctx, nil)
}

// Append upserts the summary keyed by session so retries do not duplicate it
func (a *SummaryArchive) Append(ctx context.Context, summary *domain.CompletionSummary) error {
	original, err := a.enc.SealText(summary.OriginalThought)
	if err != nil {
		return fmt.Errorf("failed to seal original thought: %w", err)
	}
	final, err := a.enc.SealText(summary.FinalReframedThought)
	if err != nil {
		return fmt.Errorf("failed to seal final thought: %w", err)
	}

	doc := summaryDocument{
		ID:                   summary.ID.String(),
		SessionID:            summary.SessionID.String(),
		UserID:               summary.UserID.String(),
		OriginalThought:      original,
		DistortionType:       summary.DistortionType,
		Method:               string(summary.Method),
		FinalReframedThought: final,
		Affirmation:          summary.Affirmation,
		CompletedAt:          summary.CompletedAt.UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err = a.collection.UpdateOne(ctx,
		bson.M{"session_id": doc.SessionID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to archive completion summary: %w", err)
	}
	return nil
}

// ListByUser returns the user's summaries, newest first
func (a *SummaryArchive) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CompletionSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "completed_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []summaryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode summaries: %w", err)
	}

	summaries := make([]domain.CompletionSummary, 0, len(docs))
	for _, d := range docs {
		s, err := a.toDomain(d)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *s)
	}
	return summaries, nil
}

func (a *SummaryArchive) toDomain(d summaryDocument) (*domain.CompletionSummary, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid summary id: %w", err)
	}
	sessionID, err := uuid.Parse(d.SessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	original, err := a.enc.OpenText(d.OriginalThought)
	if err != nil {
		return nil, fmt.Errorf("failed to open original thought: %w", err)
	}
	final, err := a.enc.OpenText(d.FinalReframedThought)
	if err != nil {
		return nil, fmt.Errorf("failed to open final thought: %w", err)
	}

	return &domain.CompletionSummary{
		ID:                   id,
		SessionID:            sessionID,
		UserID:               userID,
		OriginalThought:      original,
		DistortionType:       d.DistortionType,
		Method:               domain.Method(d.Method),
		FinalReframedThought: final,
		Affirmation:          d.Affirmation,
		CompletedAt:          d.CompletedAt,
	}, nil
}
