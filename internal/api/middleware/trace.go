package middleware

import (
	"context"
	"net/http"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/google/uuid"
)

const maxTraceIDLength = 128

// requestInfo is shared by pointer down the handler chain so outer middleware can see the
// principal that AuthMiddleware resolved further in.
type requestInfo struct {
	principal *domain.Principal
}

// TraceMiddleware ensures each request has a trace identifier propagated via context and headers.
// X-Request-ID is accepted from callers that do not send X-Trace-ID.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := incomingTraceID(r)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := contextWithTraceID(r.Context(), traceID)
		ctx = context.WithValue(ctx, requestInfoContextKey, &requestInfo{})
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func incomingTraceID(r *http.Request) string {
	for _, header := range []string{"X-Trace-ID", "X-Request-ID"} {
		if id := r.Header.Get(header); validTraceID(id) {
			return id
		}
	}
	return ""
}

// validTraceID accepts short printable ASCII so client ids cannot forge log lines.
func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

func contextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceContextKey, traceID)
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoContextKey).(*requestInfo)
	return info
}

// requestPrincipal returns the principal recorded for the request, if auth ran.
func requestPrincipal(r *http.Request) (domain.Principal, bool) {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return p, true
	}
	if info := requestInfoFromContext(r.Context()); info != nil && info.principal != nil {
		return *info.principal, true
	}
	return domain.Principal{}, false
}
