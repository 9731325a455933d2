package middleware

import (
	"net/http"

	"github.com/ayo6706/remittance-ledger/internal/api/problem"
	"github.com/ayo6706/remittance-ledger/internal/domain"
	"go.uber.org/zap"
)

// RecoverMiddleware turns a handler panic into a problem response and logs it with the stack
// and caller. http.ErrAbortHandler is re-raised so the server can drop the connection.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				fields := []zap.Field{
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("trace_id", TraceIDFromContext(r.Context())),
					zap.Stack("stack"),
				}
				if p, ok := requestPrincipal(r); ok {
					fields = append(fields, zap.String("account_id", p.AccountID.String()))
				}
				logger.Error("panic recovered", fields...)

				problem.Write(w, r, http.StatusInternalServerError,
					problem.Type(string(domain.CodeInternal)),
					http.StatusText(http.StatusInternalServerError),
					"unexpected server error",
				)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
