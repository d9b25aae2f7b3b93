package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/install-tickets/internal/api/http/handlers"
	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/config"
	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/events"
	"github.com/spec-kit/install-tickets/internal/observability"
	"github.com/spec-kit/install-tickets/internal/repository/repotest"
	"github.com/spec-kit/install-tickets/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
		Detail  string         `json:"detail"`
	} `json:"error"`
}

type ticketBody struct {
	ID          int64      `json:"id"`
	Status      string     `json:"status"`
	TechStatus  *string    `json:"tech_status"`
	AssignedTo  *int64     `json:"assigned_to"`
	CustomerID  int64      `json:"customer_id"`
	CompletedAt *time.Time `json:"completed_at"`
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

type upPinger struct{}

func (upPinger) Ping(context.Context) error { return nil }

type testServer struct {
	app     *fiber.App
	store   *repotest.Store
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, limiter fiber.Handler, deps map[string]handlers.Pinger) *testServer {
	t.Helper()
	store := repotest.New()
	hash := func(pw string) string {
		h, err := auth.HashPassword(pw, bcrypt.MinCost)
		require.NoError(t, err)
		return h
	}
	store.AddUser(domain.User{ID: 2, Name: "Ana Admin", Email: "admin@example.com", Role: domain.RoleAdmin, PasswordHash: hash("admin-pass")})
	store.AddUser(domain.User{ID: 5, Name: "Sam Seller", Email: "seller@example.com", Role: domain.RoleSeller, PasswordHash: hash("seller-pass")})
	store.AddUser(domain.User{ID: 9, Name: "Tom Tech", Email: "tech@example.com", Role: domain.RoleTech, PasswordHash: hash("tech-pass")})

	logger := zap.NewNop()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	authCfg := config.AuthConfig{BcryptCost: bcrypt.MinCost, MinPasswordLength: 6}
	metrics := observability.NewMetrics("test")

	authSvc := service.NewAuthService(authCfg, store, tokens, logger)
	ticketSvc := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     logger,
		Observer:   metrics,
	})

	app := NewServer(config.AppConfig{Name: "test", ExposeErrorDetail: true}, logger, metrics, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "v0", deps),
		Users:          handlers.NewUsersHandler(authSvc),
		Clients:        handlers.NewClientsHandler(service.NewCustomerService(store, logger)),
		Tickets:        handlers.NewTicketsHandler(ticketSvc),
		Reports:        handlers.NewReportsHandler(service.NewReportService(store)),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		LoginLimiter:   limiter,
	})
	return &testServer{app: app, store: store, tokens: tokens, metrics: metrics}
}

func (s *testServer) token(t *testing.T, userID int64, role domain.Role) string {
	t.Helper()
	tok, _, err := s.tokens.GenerateToken(userID, role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, envelope, nethttp.Header) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env, resp.Header
}

func decodeTicket(t *testing.T, env envelope) ticketBody {
	t.Helper()
	var tb ticketBody
	require.NoError(t, json.Unmarshal(env.Data, &tb))
	return tb
}

const createBody = `{
	"title": "Install",
	"description": "x",
	"priority": "high",
	"requestedBy": "5",
	"customerName": "Acme",
	"address": "St 1",
	"identifier": "123.456.789-01",
	"phoneNumber": "111"
}`

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, env, _ := s.do(t, fiber.MethodPost, "/login", "", `{"email":"Seller@Example.com","password":"seller-pass"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	var body struct {
		ID    int64  `json:"id"`
		Role  string `json:"role"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.EqualValues(t, 5, body.ID)
	assert.Equal(t, "seller", body.Role)

	claims, err := s.tokens.ParseToken(body.Token)
	require.NoError(t, err)
	assert.EqualValues(t, 5, claims.UserID)

	status, env, _ = s.do(t, fiber.MethodPost, "/login", "", `{"email":"seller@example.com","password":"nope"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)

	status, env, _ = s.do(t, fiber.MethodPost, "/login", "", `{"email":""}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestAuthenticationStatuses(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, env, _ := s.do(t, fiber.MethodGet, "/tickets", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.False(t, env.Success)

	req := httptest.NewRequest(fiber.MethodGet, "/tickets", nil)
	req.Header.Set("Authorization", "Basic abc")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	status, _, _ = s.do(t, fiber.MethodGet, "/tickets", "not-a-jwt", "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env, _ = s.do(t, fiber.MethodGet, "/tickets", s.token(t, 5, domain.RoleSeller), "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil, nil)
	seller := s.token(t, 5, domain.RoleSeller)
	admin := s.token(t, 2, domain.RoleAdmin)
	tech := s.token(t, 9, domain.RoleTech)

	status, env, _ := s.do(t, fiber.MethodPost, "/tickets", seller, createBody)
	require.Equal(t, fiber.StatusCreated, status)
	created := decodeTicket(t, env)
	assert.Equal(t, "PENDING", created.Status)
	assert.Nil(t, created.TechStatus)
	assert.NotZero(t, created.CustomerID)

	customers := s.store.AllCustomers()
	require.Len(t, customers, 1)
	assert.Equal(t, "12345678901", customers[0].Identifier)

	path := "/tickets/" + itoa(created.ID)
	status, env, _ = s.do(t, fiber.MethodPut, path+"/approve", admin, `{"assigned_to": 9}`)
	require.Equal(t, fiber.StatusOK, status)
	approved := decodeTicket(t, env)
	assert.Equal(t, "APPROVED", approved.Status)
	require.NotNil(t, approved.AssignedTo)
	assert.EqualValues(t, 9, *approved.AssignedTo)
	assert.Nil(t, approved.TechStatus)

	status, env, _ = s.do(t, fiber.MethodPut, path+"/tech-status", tech, `{"new_status":"COMPLETED"}`)
	require.Equal(t, fiber.StatusOK, status)
	done := decodeTicket(t, env)
	require.NotNil(t, done.TechStatus)
	assert.Equal(t, "COMPLETED", *done.TechStatus)
	assert.NotNil(t, done.CompletedAt)

	status, env, _ = s.do(t, fiber.MethodPut, path+"/tech-status", tech, `{"new_status":"IN_PROGRESS"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	status, env, _ = s.do(t, fiber.MethodGet, path+"/history", seller, "")
	require.Equal(t, fiber.StatusOK, status)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 3)

	status, env, _ = s.do(t, fiber.MethodGet, "/tickets/assigned/9", tech, "")
	require.Equal(t, fiber.StatusOK, status)
	var assigned []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &assigned))
	require.Len(t, assigned, 1)
	assert.Equal(t, "Ana Admin", assigned[0]["approved_by_name"])

	status, _, _ = s.do(t, fiber.MethodGet, "/tickets/assigned/9", seller, "")
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestCreateTicketValidation(t *testing.T) {
	s := newTestServer(t, nil, nil)
	seller := s.token(t, 5, domain.RoleSeller)

	body := strings.Replace(createBody, `"requestedBy": "5"`, `"requestedBy": "abc"`, 1)
	status, env, _ := s.do(t, fiber.MethodPost, "/tickets", seller, body)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	body = strings.Replace(createBody, `"requestedBy": "5"`, `"requestedBy": 6`, 1)
	status, _, _ = s.do(t, fiber.MethodPost, "/tickets", seller, body)
	assert.Equal(t, fiber.StatusForbidden, status)

	body = strings.Replace(createBody, `123.456.789-01`, `1234`, 1)
	status, env, _ = s.do(t, fiber.MethodPost, "/tickets", seller, body)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_IDENTIFIER", env.Error.Code)

	status, _, _ = s.do(t, fiber.MethodPost, "/tickets", seller, createBody)
	require.Equal(t, fiber.StatusCreated, status)
	status, env, _ = s.do(t, fiber.MethodPost, "/tickets", seller, createBody)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	status, _, _ = s.do(t, fiber.MethodPost, "/tickets", s.token(t, 2, domain.RoleAdmin), createBody)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestApproveErrors(t *testing.T) {
	s := newTestServer(t, nil, nil)
	admin := s.token(t, 2, domain.RoleAdmin)
	seller := s.token(t, 5, domain.RoleSeller)

	status, env, _ := s.do(t, fiber.MethodPost, "/tickets", seller, createBody)
	require.Equal(t, fiber.StatusCreated, status)
	ticketID := decodeTicket(t, env).ID
	path := "/tickets/" + itoa(ticketID)

	status, env, _ = s.do(t, fiber.MethodPut, "/tickets/999/approve", admin, `{"assigned_to": 9}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, _, _ = s.do(t, fiber.MethodPut, path+"/approve", admin, `{"assigned_to": 5}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	stored, _ := s.store.Ticket(ticketID)
	assert.Equal(t, domain.TicketStatusPending, stored.Status)

	status, _, _ = s.do(t, fiber.MethodPut, path+"/approve", admin, `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = s.do(t, fiber.MethodPut, path+"/approve", admin, `{"assigned_to": "x"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = s.do(t, fiber.MethodPut, "/tickets/abc/approve", admin, `{"assigned_to": 9}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = s.do(t, fiber.MethodPut, path+"/approve", s.token(t, 9, domain.RoleTech), `{"assigned_to": 9}`)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env, _ = s.do(t, fiber.MethodPut, path+"/reject", admin, "")
	require.Equal(t, fiber.StatusOK, status)
	rejected := decodeTicket(t, env)
	assert.Equal(t, "REJECTED", rejected.Status)
	assert.Nil(t, rejected.AssignedTo)
}

func TestClientSearch(t *testing.T) {
	s := newTestServer(t, nil, nil)
	seller := s.token(t, 5, domain.RoleSeller)

	status, _, _ := s.do(t, fiber.MethodPost, "/tickets", seller, createBody)
	require.Equal(t, fiber.StatusCreated, status)

	status, env, _ := s.do(t, fiber.MethodGet, "/clients/search?identifier=123.456.789-01", seller, "")
	require.Equal(t, fiber.StatusOK, status)
	var customer struct {
		Name       string `json:"name"`
		Identifier string `json:"identifier"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &customer))
	assert.Equal(t, "Acme", customer.Name)
	assert.Equal(t, "12345678901", customer.Identifier)

	status, _, _ = s.do(t, fiber.MethodGet, "/clients/search?identifier=98765432100", seller, "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _, _ = s.do(t, fiber.MethodGet, "/clients/search", seller, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = s.do(t, fiber.MethodGet, "/clients/search?identifier=12345678901", s.token(t, 9, domain.RoleTech), "")
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)
	admin := s.token(t, 2, domain.RoleAdmin)

	status, env, _ := s.do(t, fiber.MethodPost, "/users", admin, `{"name":"New Tech","email":"new@example.com","password":"secret1","role":"tech"}`)
	require.Equal(t, fiber.StatusCreated, status)
	var user struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "new@example.com", user.Email)

	status, _, _ = s.do(t, fiber.MethodPost, "/users", admin, `{"name":"Dup","email":"new@example.com","password":"secret1","role":"tech"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = s.do(t, fiber.MethodPost, "/users", s.token(t, 5, domain.RoleSeller), `{"name":"x","email":"x@example.com","password":"secret1","role":"tech"}`)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env, _ = s.do(t, fiber.MethodGet, "/users/technicians", s.token(t, 5, domain.RoleSeller), "")
	require.Equal(t, fiber.StatusOK, status)
	var techs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &techs))
	assert.Len(t, techs, 2)

	newTech := s.token(t, user.ID, domain.RoleTech)
	status, _, _ = s.do(t, fiber.MethodPut, "/users/"+itoa(user.ID)+"/password", newTech, `{"old_password":"wrong!","new_password":"another1"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _, _ = s.do(t, fiber.MethodPut, "/users/"+itoa(user.ID)+"/password", newTech, `{"old_password":"secret1","new_password":"another1"}`)
	assert.Equal(t, fiber.StatusOK, status)

	status, _, _ = s.do(t, fiber.MethodPut, "/users/"+itoa(user.ID)+"/push-token", newTech, `{"push_token":"device-1"}`)
	assert.Equal(t, fiber.StatusOK, status)
	status, _, _ = s.do(t, fiber.MethodPut, "/users/"+itoa(user.ID)+"/push-token", admin, `{"push_token":"device-1"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestTechSummaryEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, env, _ := s.do(t, fiber.MethodGet, "/reports/tech-summary?from=2026-01-01&to=2026-01-31", s.token(t, 2, domain.RoleAdmin), "")
	require.Equal(t, fiber.StatusOK, status)
	var report struct {
		From string           `json:"from"`
		To   string           `json:"to"`
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "2026-01-01", report.From)
	assert.Equal(t, "2026-01-31", report.To)
	assert.NotNil(t, report.Rows)

	status, _, _ = s.do(t, fiber.MethodGet, "/reports/tech-summary?from=01/01/2026", s.token(t, 2, domain.RoleAdmin), "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = s.do(t, fiber.MethodGet, "/reports/tech-summary", s.token(t, 5, domain.RoleSeller), "")
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestTicketReadHidesUnknownIDs(t *testing.T) {
	s := newTestServer(t, nil, nil)
	seller := s.token(t, 5, domain.RoleSeller)
	otherSeller := s.token(t, 6, domain.RoleSeller)

	status, env, _ := s.do(t, fiber.MethodPost, "/tickets", seller, createBody)
	require.Equal(t, fiber.StatusCreated, status)
	path := "/tickets/" + itoa(decodeTicket(t, env).ID)

	status, foreign, _ := s.do(t, fiber.MethodGet, path, otherSeller, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	status, missing, _ := s.do(t, fiber.MethodGet, "/tickets/99999", otherSeller, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	require.NotNil(t, foreign.Error)
	require.NotNil(t, missing.Error)
	assert.Equal(t, foreign.Error.Message, missing.Error.Message)

	status, _, _ = s.do(t, fiber.MethodGet, "/tickets/99999/history", s.token(t, 9, domain.RoleTech), "")
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _, _ = s.do(t, fiber.MethodGet, "/tickets/99999", s.token(t, 2, domain.RoleAdmin), "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestUnmatchedRoute(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, env, _ := s.do(t, fiber.MethodGet, "/nowhere", "", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.Equal(t, "/nowhere", env.Error.Details["path"])
	assert.Equal(t, "GET", env.Error.Details["method"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil, map[string]handlers.Pinger{"postgres": upPinger{}, "redis": downPinger{}})

	status, env, _ := s.do(t, fiber.MethodGet, "/health/live", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	status, env, _ = s.do(t, fiber.MethodGet, "/health/ready", "", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "ok", env.Error.Details["postgres"])
	assert.Equal(t, "connection refused", env.Error.Details["redis"])

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "test_http_requests_total")
}

func TestPanicIsRenderedAsInternalError(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, time.Second, true)
	app.Get("/boom", func(c *fiber.Ctx) error { panic("kaboom") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Detail, "kaboom")
	assert.NotEmpty(t, resp.Header.Get(observability.HeaderRequestID))
}

type fakeScripter struct {
	redis.Scripter
	result any
	err    error
	keys   []string
}

func (f *fakeScripter) EvalSha(_ context.Context, _ string, keys []string, _ ...any) *redis.Cmd {
	f.keys = keys
	return redis.NewCmdResult(f.result, f.err)
}

func (f *fakeScripter) Eval(_ context.Context, _ string, keys []string, _ ...any) *redis.Cmd {
	f.keys = keys
	return redis.NewCmdResult(f.result, f.err)
}

func TestLoginRateLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 3, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}

	blocked := &fakeScripter{result: []any{int64(0), int64(0), int64(1500)}}
	s := newTestServer(t, LoginRateLimiter(cfg, blocked, zap.NewNop()), nil)
	status, env, header := s.do(t, fiber.MethodPost, "/login", "", `{"email":"seller@example.com","password":"seller-pass"}`)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
	assert.Equal(t, "2", header.Get(fiber.HeaderRetryAfter))
	require.Len(t, blocked.keys, 1)
	assert.True(t, strings.HasPrefix(blocked.keys[0], "rl:login:"))

	allowed := &fakeScripter{result: []any{int64(1), int64(2), int64(0)}}
	s = newTestServer(t, LoginRateLimiter(cfg, allowed, zap.NewNop()), nil)
	status, _, header = s.do(t, fiber.MethodPost, "/login", "", `{"email":"seller@example.com","password":"seller-pass"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "2", header.Get("X-RateLimit-Remaining"))

	broken := &fakeScripter{err: errors.New("redis down")}
	s = newTestServer(t, LoginRateLimiter(cfg, broken, zap.NewNop()), nil)
	status, _, _ = s.do(t, fiber.MethodPost, "/login", "", `{"email":"seller@example.com","password":"seller-pass"}`)
	assert.Equal(t, fiber.StatusOK, status)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
