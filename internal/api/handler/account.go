package handler

import (
	"net/http"

	"github.com/ayo6706/remittance-ledger/internal/models"
	"github.com/ayo6706/remittance-ledger/internal/service"
)

type AccountHandler struct {
	svc *service.AccountService
}

func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// GetBalances handles GET /v1/accounts/{id}/balances.
func (h *AccountHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rows, err := h.svc.GetBalances(r.Context(), p, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	out := make([]models.Balance, 0, len(rows))
	for _, b := range rows {
		out = append(out, balanceView(b))
	}
	RespondJSON(w, http.StatusOK, map[string]any{"account_id": id, "balances": out})
}

// GetStatement handles GET /v1/accounts/{id}/statement.
func (h *AccountHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 10)
	rows, err := h.svc.GetStatement(r.Context(), p, id, page, pageSize)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	out := make([]models.Entry, 0, len(rows))
	for _, e := range rows {
		out = append(out, entryView(e))
	}
	RespondJSON(w, http.StatusOK, map[string]any{"entries": out})
}
