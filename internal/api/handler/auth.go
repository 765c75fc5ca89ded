package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/reframe-journal/internal/api/middleware"
	"github.com/Rrens/reframe-journal/internal/api/response"
	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/service"
)

var validate = validator.New()

// validationMessages turns validator errors into a field -> message map
func validationMessages(err error) any {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make(map[string]string)
	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			messages[field] = "field is required"
		case "email":
			messages[field] = "invalid email format"
		case "min":
			messages[field] = "must be at least " + e.Param() + " characters"
		case "max":
			messages[field] = "must be at most " + e.Param() + " characters"
		case "oneof":
			messages[field] = "must be one of: " + e.Param()
		default:
			messages[field] = "validation failed on " + e.Tag()
		}
	}
	return messages
}

// decode reads a JSON body and validates it, writing the error response
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		response.BadRequest(w, validationMessages(err))
		return false
	}
	return true
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input domain.UserCreate
	if !decode(w, r, &input) {
		return
	}

	user, err := h.authService.Register(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Conflict(w, err.Error())
			return
		}
		log.Error().Err(err).Msg("registration failed")
		response.InternalError(w, "registration failed")
		return
	}

	response.Created(w, map[string]any{
		"id":           user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
	})
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input domain.UserLogin
	if !decode(w, r, &input) {
		return
	}

	tokens, err := h.authService.Login(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(w, err.Error())
			return
		}
		log.Error().Err(err).Msg("login failed")
		response.InternalError(w, "login failed")
		return
	}

	response.OK(w, tokens)
}

// Refresh handles token refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if !decode(w, r, &input) {
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) || errors.Is(err, domain.ErrUserNotFound) {
			response.Unauthorized(w, err.Error())
			return
		}
		log.Error().Err(err).Msg("token refresh failed")
		response.InternalError(w, "token refresh failed")
		return
	}

	response.OK(w, tokens)
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			response.Unauthorized(w, "user not found")
			return
		}
		response.InternalError(w, "failed to load user")
		return
	}

	response.OK(w, user)
}
