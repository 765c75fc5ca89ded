package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/security"
)

func newAuthService(repo domain.UserRepository) (*AuthService, *security.JWTManager) {
	jwtManager := security.NewJWTManager("test-secret", 15*time.Minute, time.Hour)
	return NewAuthService(repo, jwtManager), jwtManager
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newAuthService(repo)

		repo.On("EmailExists", ctx, "sam@example.com").Return(false, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "sam@example.com" && u.DisplayName == "Sam"
		})).Return(nil)

		user, err := svc.Register(ctx, domain.UserCreate{
			Email:       " Sam@Example.com ",
			Password:    "correct horse",
			DisplayName: "Sam",
		})
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))
		repo.AssertExpectations(t)
	})

	t.Run("email taken", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newAuthService(repo)

		repo.On("EmailExists", ctx, "sam@example.com").Return(true, nil)

		_, err := svc.Register(ctx, domain.UserCreate{Email: "sam@example.com", Password: "correct horse"})
		assert.ErrorIs(t, err, ErrEmailTaken)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{ID: uuid.New(), Email: "sam@example.com", DisplayName: "Sam", PasswordHash: string(hash)}

	t.Run("success", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, jwtManager := newAuthService(repo)
		repo.On("GetByEmail", ctx, "sam@example.com").Return(user, nil)

		pair, err := svc.Login(ctx, domain.UserLogin{Email: "sam@example.com", Password: "correct horse"})
		require.NoError(t, err)

		claims, err := jwtManager.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, "Sam", claims.DisplayName)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newAuthService(repo)
		repo.On("GetByEmail", ctx, "sam@example.com").Return(user, nil)

		_, err := svc.Login(ctx, domain.UserLogin{Email: "sam@example.com", Password: "nope"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newAuthService(repo)
		repo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, nil)

		_, err := svc.Login(ctx, domain.UserLogin{Email: "ghost@example.com", Password: "x"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Email: "sam@example.com"}

	repo := new(MockUserRepository)
	svc, jwtManager := newAuthService(repo)
	repo.On("GetByID", ctx, user.ID).Return(user, nil)

	refresh, err := jwtManager.GenerateRefreshToken(user.ID)
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}
