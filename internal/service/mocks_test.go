package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/llm"
)

// MockSessionRepository mocks domain.ReframingRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.ReframingSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ReframingSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReframingSession), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, session *domain.ReframingSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ReframingSession, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.ReframingSession), args.Error(1)
}

// MockSummaryRepository mocks domain.SummaryRepository
type MockSummaryRepository struct {
	mock.Mock
}

func (m *MockSummaryRepository) Append(ctx context.Context, summary *domain.CompletionSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *MockSummaryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CompletionSummary, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]domain.CompletionSummary), args.Error(1)
}

// MockSessionCache mocks SessionCache
type MockSessionCache struct {
	mock.Mock
}

func (m *MockSessionCache) Get(ctx context.Context, id uuid.UUID) (*domain.ReframingSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReframingSession), args.Error(1)
}

func (m *MockSessionCache) Set(ctx context.Context, session *domain.ReframingSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockUserRepository mocks domain.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// MockModelAdapter mocks reframe.ModelAdapter
type MockModelAdapter struct {
	mock.Mock
}

func (m *MockModelAdapter) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Completion), args.Error(1)
}

// memorySessionRepository is a goroutine-safe in-memory session store that
// hands out copies, like a real database would.
type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]domain.ReframingSession
}

func newMemorySessionRepository() *memorySessionRepository {
	return &memorySessionRepository{sessions: make(map[uuid.UUID]domain.ReframingSession)}
}

func cloneSession(s *domain.ReframingSession) domain.ReframingSession {
	c := *s
	c.History = append([]domain.Turn(nil), s.History...)
	c.OfferedPacing = append([]domain.PacingOption(nil), s.OfferedPacing...)
	return c
}

func (r *memorySessionRepository) Create(ctx context.Context, session *domain.ReframingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *memorySessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ReframingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := cloneSession(&s)
	return &c, nil
}

func (r *memorySessionRepository) Update(ctx context.Context, session *domain.ReframingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[session.ID]
	if !ok || stored.Status == domain.StatusCompleted {
		return domain.ErrSessionClosed
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *memorySessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ReframingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ReframingSession
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, cloneSession(&s))
		}
	}
	return out, nil
}
