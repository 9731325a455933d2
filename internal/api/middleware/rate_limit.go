package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/api/problem"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits unauthenticated routes per client IP.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitExceeded(rps, "this IP")),
	)
}

// AuthRateLimiter limits authenticated routes per account, falling back to the client IP when
// no principal is present.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(accountKey),
		httprate.WithLimitHandler(limitExceeded(rps, "this account")),
	)
}

func accountKey(r *http.Request) (string, error) {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return "account:" + p.AccountID.String(), nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}

func limitExceeded(rps int, subject string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusTooManyRequests,
			problem.Type("rate-limit-exceeded"),
			http.StatusText(http.StatusTooManyRequests),
			fmt.Sprintf("Rate limit of %d req/s exceeded for %s", rps, subject),
		)
	}
}
