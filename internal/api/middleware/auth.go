package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/remittance-ledger/internal/api/problem"
	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	principalContextKey   contextKey = "principal"
	traceContextKey       contextKey = "trace_id"
	requestInfoContextKey contextKey = "request_info"
)

var jwtSecret []byte
var jwtIssuer string
var jwtAudience string

// Claims is the token body the identity service issues.
type Claims struct {
	AccountID string `json:"account_id"`
	OfficeID  string `json:"office_id,omitempty"`
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	Active    *bool  `json:"active,omitempty"`
	jwt.RegisteredClaims
}

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	jwtSecret = []byte(secret)
}

func SetJWTValidation(issuer, audience string) {
	jwtIssuer = strings.TrimSpace(issuer)
	jwtAudience = strings.TrimSpace(audience)
}

func JWTSecret() []byte {
	clone := make([]byte, len(jwtSecret))
	copy(clone, jwtSecret)
	return clone
}

func JWTIssuer() string {
	return jwtIssuer
}

func JWTAudience() string {
	return jwtAudience
}

func principalFromClaims(c *Claims) (domain.Principal, error) {
	accountID, err := uuid.Parse(c.AccountID)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("invalid account_id")
	}
	if c.Subject != "" && c.Subject != c.AccountID {
		return domain.Principal{}, fmt.Errorf("subject does not match account_id")
	}
	p := domain.Principal{
		AccountID: accountID,
		Role:      c.Role,
		Name:      strings.TrimSpace(c.Name),
		Active:    c.Active == nil || *c.Active,
	}
	switch c.Role {
	case domain.RoleUser, domain.RoleAgent, domain.RoleAdmin:
	default:
		return domain.Principal{}, fmt.Errorf("unknown role %q", c.Role)
	}
	if c.OfficeID != "" {
		officeID, err := uuid.Parse(c.OfficeID)
		if err != nil {
			return domain.Principal{}, fmt.Errorf("invalid office_id")
		}
		p.OfficeID = &officeID
	}
	return p, nil
}

// AuthMiddleware validates the JWT token and injects the resolved principal into the context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), http.StatusText(http.StatusUnauthorized), "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), http.StatusText(http.StatusUnauthorized), "Invalid token format")
			return
		}
		if len(jwtSecret) == 0 {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), http.StatusText(http.StatusInternalServerError), "auth is not configured")
			return
		}

		claims := &Claims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if jwtIssuer != "" {
			opts = append(opts, jwt.WithIssuer(jwtIssuer))
		}
		if jwtAudience != "" {
			opts = append(opts, jwt.WithAudience(jwtAudience))
		}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return jwtSecret, nil
		}, opts...)
		if err != nil || !token.Valid {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), http.StatusText(http.StatusUnauthorized), "Invalid token")
			return
		}
		principal, err := principalFromClaims(claims)
		if err != nil {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), http.StatusText(http.StatusUnauthorized), "Invalid token claims: "+err.Error())
			return
		}
		if !principal.Active {
			problem.Write(w, r, http.StatusForbidden, problem.Type(string(domain.CodeForbidden)), http.StatusText(http.StatusForbidden), "principal is inactive")
			return
		}
		if info := requestInfoFromContext(r.Context()); info != nil {
			info.principal = &principal
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireRole ensures the authenticated principal has the required role.
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || p.Role != requiredRole {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), http.StatusText(http.StatusForbidden), "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithPrincipal attaches p to ctx.
func ContextWithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext returns the authenticated principal.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	if ctx == nil {
		return domain.Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey).(domain.Principal)
	return p, ok
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceContextKey).(string); ok {
		return v
	}
	return ""
}
