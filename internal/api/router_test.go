package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/reframe-journal/internal/api"
	"github.com/Rrens/reframe-journal/internal/api/handler"
	"github.com/Rrens/reframe-journal/internal/config"
	"github.com/Rrens/reframe-journal/internal/llm"
	"github.com/Rrens/reframe-journal/internal/llm/mock"
	"github.com/Rrens/reframe-journal/internal/reframe"
	"github.com/Rrens/reframe-journal/internal/repository/sqlite"
	"github.com/Rrens/reframe-journal/internal/security"
	"github.com/Rrens/reframe-journal/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith lets a test adjust the dependencies before the router is built
func newTestServerWith(t *testing.T, configure func(*api.Dependencies)) *testServer {
	t.Helper()

	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enc, err := security.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.MiddlewareTimeout = 5 * time.Second

	jwtManager := security.NewJWTManager("test-secret", 15*time.Minute, time.Hour)

	llmRouter := llm.NewRouter("mock")
	llmRouter.RegisterProvider(mock.NewProvider())

	controller := reframe.NewController(reframe.DefaultConfig(), llmRouter, security.NewScreen(0))

	deps := api.Dependencies{
		Config:      cfg,
		JWTManager:  jwtManager,
		AuthService: service.NewAuthService(sqlite.NewUserRepository(db), jwtManager),
		ReframingService: service.NewReframingService(
			controller,
			sqlite.NewSessionRepository(db, enc),
			sqlite.NewSummaryRepository(db, enc),
			nil,
		),
		LLMRouter: llmRouter,
		Readiness: map[string]handler.Pinger{"sqlite": db},
	}

	if configure != nil {
		configure(&deps)
	}

	return &testServer{t: t, handler: api.NewRouter(deps)}
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(s.t, json.NewDecoder(rec.Body).Decode(&env))
	return rec.Code, env
}

func (s *testServer) login(email string) string {
	s.t.Helper()

	code, _ := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(s.t, http.StatusCreated, code)

	code, env := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(s.t, http.StatusOK, code)

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &tokens))
	return tokens.AccessToken
}

type replyBody struct {
	Message              string `json:"message"`
	IsComplete           bool   `json:"is_complete"`
	FinalReframedThought string `json:"final_reframed_thought"`
	ShowPacingMenu       bool   `json:"show_pacing_menu"`
	PacingMenu           *struct {
		Options []struct {
			Option string `json:"option"`
		} `json:"options"`
	} `json:"pacing_menu"`
	TurnCount int    `json:"turn_count"`
	Status    string `json:"status"`
	Screened  string `json:"screened"`
}

func decodeReply(t *testing.T, env envelope) replyBody {
	t.Helper()
	var r replyBody
	require.NoError(t, json.Unmarshal(env.Data, &r))
	return r
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = srv.do(http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(http.MethodGet, "/api/v1/reframing/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = srv.do(http.MethodGet, "/api/v1/reframing/sessions", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Error, &fields))
	assert.Contains(t, fields, "Email")
	assert.Contains(t, fields, "Password")

	srv.login("dup@example.com")
	code, _ = srv.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "dup@example.com",
		"password": "correct horse battery",
	})
	assert.Equal(t, http.StatusConflict, code)
}

func TestReframingFlow(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("sam@example.com")

	code, env := srv.do(http.MethodPost, "/api/v1/reframing/sessions", token, map[string]any{
		"selected_thought": "I ruin every friendship.",
		"distortion_type":  "overgeneralization",
		"method":           "evidence-check",
	})
	require.Equal(t, http.StatusCreated, code)

	var session struct {
		ID       string `json:"id"`
		Method   string `json:"method"`
		Status   string `json:"status"`
		MaxTurns int    `json:"max_turns"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "evidenceCheck", session.Method)
	assert.Equal(t, "active", session.Status)
	assert.Equal(t, 12, session.MaxTurns)

	base := "/api/v1/reframing/sessions/" + session.ID

	for i := 1; i <= 3; i++ {
		code, env = srv.do(http.MethodPost, base+"/messages", token, map[string]any{
			"text":                     "I forgot to call Ana back",
			"has_alternative_thoughts": false,
		})
		require.Equal(t, http.StatusOK, code)
		reply := decodeReply(t, env)
		assert.Equal(t, i, reply.TurnCount)
		assert.Equal(t, i == 3, reply.ShowPacingMenu)
		if i == 3 {
			require.NotNil(t, reply.PacingMenu)
			for _, opt := range reply.PacingMenu.Options {
				assert.NotEqual(t, "different_thought", opt.Option)
			}
			assert.Equal(t, "awaiting_pacing_choice", reply.Status)
		}
	}

	code, _ = srv.do(http.MethodPost, base+"/pacing", token, map[string]string{"option": "different_thought"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, env = srv.do(http.MethodPost, base+"/pacing", token, map[string]string{"option": "keep_reframing"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", decodeReply(t, env).Status)

	code, _ = srv.do(http.MethodPost, base+"/pacing", token, map[string]string{"option": "keep_reframing"})
	assert.Equal(t, http.StatusConflict, code)

	code, env = srv.do(http.MethodPost, base+"/messages", token, map[string]any{"text": "I want to die"})
	require.Equal(t, http.StatusOK, code)
	crisis := decodeReply(t, env)
	assert.Equal(t, "crisis", crisis.Screened)
	assert.Equal(t, 3, crisis.TurnCount)

	code, env = srv.do(http.MethodPost, base+"/messages", token, map[string]any{
		"text": "reframed: I sometimes drop the ball, and my friends still reach out.",
	})
	require.Equal(t, http.StatusOK, code)
	done := decodeReply(t, env)
	assert.True(t, done.IsComplete)
	assert.Equal(t, "I sometimes drop the ball, and my friends still reach out.", done.FinalReframedThought)
	assert.Equal(t, "completed", done.Status)

	code, _ = srv.do(http.MethodPost, base+"/messages", token, map[string]any{"text": "one more thing"})
	assert.Equal(t, http.StatusConflict, code)

	code, env = srv.do(http.MethodGet, base, token, nil)
	require.Equal(t, http.StatusOK, code)
	var stored struct {
		Status  string `json:"status"`
		History []any  `json:"history"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Equal(t, "completed", stored.Status)
	assert.Len(t, stored.History, 8)

	code, env = srv.do(http.MethodGet, "/api/v1/reframing/summaries", token, nil)
	require.Equal(t, http.StatusOK, code)
	var summaries []struct {
		OriginalThought      string `json:"original_thought"`
		FinalReframedThought string `json:"final_reframed_thought"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "I ruin every friendship.", summaries[0].OriginalThought)

	code, env = srv.do(http.MethodGet, "/api/v1/reframing/sessions", token, nil)
	require.Equal(t, http.StatusOK, code)
	var list []any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestReframingErrors(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.login("owner@example.com")
	other := srv.login("other@example.com")

	code, _ := srv.do(http.MethodPost, "/api/v1/reframing/sessions", owner, map[string]any{
		"selected_thought": "Nothing works out",
		"distortion_type":  "catastrophizing",
		"method":           "astrology",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := srv.do(http.MethodPost, "/api/v1/reframing/sessions", owner, map[string]any{
		"selected_thought": "Nothing works out",
		"distortion_type":  "catastrophizing",
		"method":           "balancedThinking",
	})
	require.Equal(t, http.StatusCreated, code)
	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	base := "/api/v1/reframing/sessions/" + session.ID

	code, _ = srv.do(http.MethodGet, base, other, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = srv.do(http.MethodPost, base+"/messages", other, map[string]any{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = srv.do(http.MethodGet, "/api/v1/reframing/sessions/not-a-uuid", owner, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = srv.do(http.MethodPost, base+"/pacing", owner, map[string]string{"option": "nap"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = srv.do(http.MethodPost, base+"/pacing", owner, map[string]string{"option": "visualization"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestListLLMProviders(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("p@example.com")

	code, env := srv.do(http.MethodGet, "/api/v1/llm-providers", token, nil)
	require.Equal(t, http.StatusOK, code)

	var body struct {
		Providers []struct {
			Name string `json:"name"`
		} `json:"providers"`
		DefaultProvider string `json:"default_provider"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "mock", body.DefaultProvider)
	require.Len(t, body.Providers, 1)
}

type countingFlusher struct {
	calls int
}

func (f *countingFlusher) FlushAll(ctx context.Context) (int64, error) {
	f.calls++
	return 3, nil
}

func TestCacheFlushRequiresAdmin(t *testing.T) {
	flusher := &countingFlusher{}
	srv := newTestServerWith(t, func(deps *api.Dependencies) {
		deps.Cache = flusher
		deps.Config.Auth.AdminEmails = []string{" Ops@Example.com "}
	})

	user := srv.login("someone@example.com")
	code, _ := srv.do(http.MethodPost, "/api/v1/cache/flush", user, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, 0, flusher.calls)

	admin := srv.login("ops@example.com")
	code, env := srv.do(http.MethodPost, "/api/v1/cache/flush", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, flusher.calls)

	var body struct {
		KeysDeleted int64 `json:"keys_deleted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, int64(3), body.KeysDeleted)
}

func TestCacheFlushWithoutAdminsIsForbidden(t *testing.T) {
	flusher := &countingFlusher{}
	srv := newTestServerWith(t, func(deps *api.Dependencies) {
		deps.Cache = flusher
	})

	token := srv.login("ops@example.com")
	code, _ := srv.do(http.MethodPost, "/api/v1/cache/flush", token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, 0, flusher.calls)
}
