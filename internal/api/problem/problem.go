package problem

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"go.uber.org/zap"
)

const contentType = "application/problem+json"
const baseTypeURL = "https://errors.remittance-ledger.dev/"

// RetryAfterSeconds is advertised on retryable 503 responses.
const RetryAfterSeconds = "1"

// Details represents RFC 7807 Problem Details.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
	Code      string `json:"code,omitempty"`
}

func Type(slug string) string {
	if slug == "" || slug == "about:blank" || strings.HasPrefix(slug, "http") {
		return slug
	}
	return baseTypeURL + slug
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	write(w, r, status, problemType, title, detail, "")
}

func write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail, code string) {
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}
	instance := ""
	requestID := w.Header().Get("X-Trace-ID")
	if r != nil {
		instance = r.URL.Path
		if requestID == "" {
			requestID = r.Header.Get("X-Trace-ID")
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Details{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		RequestID: requestID,
		Code:      code,
	})
}

var statusByCode = map[domain.Code]int{
	domain.CodeValidation:        http.StatusBadRequest,
	domain.CodeInsufficientFunds: http.StatusUnprocessableEntity,
	domain.CodeNotFound:          http.StatusNotFound,
	domain.CodeAlreadyTerminal:   http.StatusConflict,
	domain.CodeBusy:              http.StatusServiceUnavailable,
	domain.CodeCodeExhausted:     http.StatusServiceUnavailable,
	domain.CodeForbidden:         http.StatusForbidden,
	domain.CodeTooManyAttempts:   http.StatusTooManyRequests,
	domain.CodeInternal:          http.StatusInternalServerError,
}

// StatusOf returns the HTTP status for a domain code.
func StatusOf(code domain.Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// FromError writes err as a problem. Domain errors keep their message; anything else is logged
// and surfaced as a bare internal error.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) || de.Code == domain.CodeInternal {
		zap.L().Error("request failed", zap.Error(err), zap.String("path", pathOf(r)))
		write(w, r, http.StatusInternalServerError, Type(string(domain.CodeInternal)), "", "internal error", string(domain.CodeInternal))
		return
	}
	status := StatusOf(de.Code)
	if domain.Retryable(err) {
		w.Header().Set("Retry-After", RetryAfterSeconds)
	}
	write(w, r, status, Type(string(de.Code)), "", de.Message, string(de.Code))
}

func pathOf(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.URL.Path
}
