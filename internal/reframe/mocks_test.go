package reframe

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/reframe-journal/internal/llm"
)

// MockModelAdapter mocks the ModelAdapter interface
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
