package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/reframe-journal/internal/api/middleware"
	"github.com/Rrens/reframe-journal/internal/api/response"
	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/service"
)

// ReframingHandler serves the reframing session endpoints
type ReframingHandler struct {
	reframingService *service.ReframingService
}

// NewReframingHandler creates a new reframing handler
func NewReframingHandler(reframingService *service.ReframingService) *ReframingHandler {
	return &ReframingHandler{reframingService: reframingService}
}

// Start opens a new session for a selected thought
func (h *ReframingHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.StartSessionRequest
	if !decode(w, r, &req) {
		return
	}

	session, err := h.reframingService.Start(r.Context(), userID, req)
	if err != nil {
		writeReframingError(w, err)
		return
	}

	response.Created(w, session)
}

// List returns the user's sessions
func (h *ReframingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := pagination(r)
	sessions, err := h.reframingService.ListSessions(r.Context(), userID, limit, offset)
	if err != nil {
		writeReframingError(w, err)
		return
	}

	response.OK(w, sessions)
}

// Get returns one session
func (h *ReframingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}

	session, err := h.reframingService.GetSession(r.Context(), userID, sessionID)
	if err != nil {
		writeReframingError(w, err)
		return
	}

	response.OK(w, session)
}

// SendMessage runs one dialogue turn
func (h *ReframingHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if !decode(w, r, &req) {
		return
	}

	reply, err := h.reframingService.SendMessage(r.Context(), userID, sessionID, req)
	if err != nil {
		writeReframingError(w, err)
		return
	}

	response.OK(w, reply)
}

// ChoosePacing applies a pacing menu selection
func (h *ReframingHandler) ChoosePacing(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}

	var req domain.PacingChoiceRequest
	if !decode(w, r, &req) {
		return
	}

	reply, err := h.reframingService.ChoosePacing(r.Context(), userID, sessionID, req)
	if err != nil {
		writeReframingError(w, err)
		return
	}

	response.OK(w, reply)
}

// ListSummaries returns the user's completed-session summaries
func (h *ReframingHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := pagination(r)
	summaries, err := h.reframingService.ListSummaries(r.Context(), userID, limit)
	if err != nil {
		writeReframingError(w, err)
		return
	}

	response.OK(w, summaries)
}

func sessionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, sessionID, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func writeReframingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidMethod), errors.Is(err, domain.ErrEmptyThought):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrSessionClosed), errors.Is(err, domain.ErrNotAwaitingPacing):
		response.Conflict(w, err.Error())
	case errors.Is(err, domain.ErrInvalidPacingOption):
		response.UnprocessableEntity(w, err.Error())
	default:
		log.Error().Err(err).Msg("reframing request failed")
		response.InternalError(w, "internal error")
	}
}
