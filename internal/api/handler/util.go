package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayo6706/remittance-ledger/internal/api/middleware"
	"github.com/ayo6706/remittance-ledger/internal/api/problem"
	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	problem.Write(w, r, status, problem.Type(problemType), http.StatusText(status), message)
}

// respondDomainError maps a service error onto its problem response.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	problem.FromError(w, r, err)
}

func requestPrincipal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return domain.Principal{}, false
	}
	return p, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, string(domain.CodeValidation), "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	if err := validateStruct(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, string(domain.CodeValidation), err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}
