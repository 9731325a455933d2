package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signedToken(t *testing.T, accountID, officeID uuid.UUID, role string) string {
	t.Helper()
	claims := Claims{
		AccountID: accountID.String(),
		OfficeID:  officeID.String(),
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestTraceMiddlewareAcceptsRequestID(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Trace-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "trace-1")
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "trace-1", seen)
}

func TestTraceMiddlewareReplacesUnsafeIDs(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	for _, id := range []string{"two words", strings.Repeat("a", maxTraceIDLength+1), "line\nbreak"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header["X-Trace-Id"] = []string{id}
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, id, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	}
}

func TestLoggingMiddlewareRecordsPrincipal(t *testing.T) {
	SetJWTSecret(testSecret)
	SetJWTValidation("", "")
	core, logs := observer.New(zapcore.InfoLevel)
	accountID, officeID := uuid.New(), uuid.New()

	r := chi.NewRouter()
	r.Use(TraceMiddleware, LoggingMiddleware(zap.New(core)))
	r.With(AuthMiddleware).Get("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, accountID, officeID, domain.RoleAgent))
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, int64(http.StatusNoContent), fields["status"])
	assert.Equal(t, accountID.String(), fields["account_id"])
	assert.Equal(t, domain.RoleAgent, fields["role"])
	assert.Equal(t, officeID.String(), fields["office_id"])
}

func TestLoggingMiddlewareLevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(TraceMiddleware, LoggingMiddleware(zap.New(core)))
	r.With(AuthMiddleware).Get("/v1/me", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	_, hasAccount := logs.All()[0].ContextMap()["account_id"]
	assert.False(t, hasAccount)
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

func TestRecoverMiddlewareWritesProblem(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := TraceMiddleware(RecoverMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("ledger exploded")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/transfers", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(domain.CodeInternal))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ledger exploded", logs.All()[0].ContextMap()["panic"])
}

func TestRecoverMiddlewareReraisesAbort(t *testing.T) {
	h := RecoverMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRoutePatternHidesUnmatchedPaths(t *testing.T) {
	var pattern string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			pattern = routePattern(req)
		})
	})
	r.Get("/v1/transfers/{id}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/transfers/"+uuid.NewString(), nil))
	assert.Equal(t, "/v1/transfers/{id}", pattern)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/scan/"+uuid.NewString(), nil))
	assert.Equal(t, unmatchedRoute, pattern)
}

func TestAuthRateLimiterKeysByAccount(t *testing.T) {
	limited := AuthRateLimiter(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	send := func(accountID uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/balances", nil)
		req = req.WithContext(ContextWithPrincipal(req.Context(), domain.Principal{AccountID: accountID, Role: domain.RoleUser, Active: true}))
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	a, b := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusOK, send(a))
	assert.Equal(t, http.StatusTooManyRequests, send(a))
	assert.Equal(t, http.StatusOK, send(b))
}
