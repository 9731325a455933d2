package handler

import (
	"context"
	"net/http"

	"github.com/ayo6706/remittance-ledger/internal/directory"
	"github.com/ayo6706/remittance-ledger/internal/models"
	"github.com/ayo6706/remittance-ledger/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfficeRefresher reloads an office from its source of truth, replacing any cached copy.
type OfficeRefresher interface {
	Refresh(ctx context.Context, id uuid.UUID) (directory.Office, error)
}

// AdminHandler serves the operator endpoints: commission rules, deposits, manual sweeps and
// office cache refreshes.
type AdminHandler struct {
	commissions *service.CommissionService
	accounts    *service.AccountService
	transfers   *service.TransferService
	offices     OfficeRefresher
}

func NewAdminHandler(commissions *service.CommissionService, accounts *service.AccountService, transfers *service.TransferService, offices OfficeRefresher) *AdminHandler {
	return &AdminHandler{commissions: commissions, accounts: accounts, transfers: transfers, offices: offices}
}

type UpsertRuleRequest struct {
	TransferType string `json:"transfer_type" validate:"required,oneof=internal city inter-office international market"`
	Currency     string `json:"currency" validate:"required,len=3"`
	Scope        string `json:"scope" validate:"required"`
	Party        string `json:"party,omitempty" validate:"omitempty,oneof=system receiver"`
	Kind         string `json:"kind" validate:"required,oneof=Fixed Percentage PerMille"`
	Value        string `json:"value" validate:"required,nonnegative_amount"`
}

type DepositRequest struct {
	Amount   string `json:"amount" validate:"required,positive_amount"`
	Currency string `json:"currency" validate:"required,len=3"`
	Note     string `json:"note,omitempty" validate:"max=500"`
}

// ListRules handles GET /v1/admin/commission-rules.
func (h *AdminHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := queryInt(r, "page_size", 50)
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	page := max(queryInt(r, "page", 1), 1)
	rows, err := h.commissions.ListRules(r.Context(), service.RuleFilter{
		TransferType: q.Get("transfer_type"),
		Currency:     q.Get("currency"),
		ActiveOnly:   q.Get("active") == "true",
		Limit:        int32(pageSize),
		Offset:       int32((page - 1) * pageSize),
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	out := make([]models.CommissionRule, 0, len(rows))
	for _, rule := range rows {
		out = append(out, ruleView(rule))
	}
	RespondJSON(w, http.StatusOK, map[string]any{"rules": out})
}

// GetRule handles GET /v1/admin/commission-rules/{id}.
func (h *AdminHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rule, err := h.commissions.GetRule(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, ruleView(rule))
}

// UpsertRule handles POST /v1/admin/commission-rules.
func (h *AdminHandler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	var req UpsertRuleRequest
	if !decode(w, r, &req) {
		return
	}
	rule, err := h.commissions.UpsertRule(r.Context(), p.AccountID, service.RuleInput{
		TransferType: req.TransferType,
		Currency:     req.Currency,
		Scope:        req.Scope,
		Party:        req.Party,
		Kind:         req.Kind,
		Value:        decimal.RequireFromString(req.Value),
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, ruleView(rule))
}

// DeactivateRule handles POST /v1/admin/commission-rules/{id}/deactivate.
func (h *AdminHandler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rule, err := h.commissions.DeactivateRule(r.Context(), p.AccountID, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, ruleView(rule))
}

// RefreshOffice handles POST /v1/admin/offices/{id}/refresh, used after the office directory
// changes an office so transfers stop seeing the cached copy.
func (h *AdminHandler) RefreshOffice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.offices.Refresh(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models.Office{
		ID:                 o.ID,
		Name:               o.Name,
		Country:            o.Country,
		AcceptedCurrencies: o.AcceptedCurrencies,
		Active:             o.Active,
	})
}

// Deposit handles POST /v1/admin/accounts/{id}/deposits.
func (h *AdminHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req DepositRequest
	if !decode(w, r, &req) {
		return
	}
	bal, err := h.accounts.Deposit(r.Context(), p, id, decimal.RequireFromString(req.Amount), req.Currency, req.Note)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, models.Balance{AccountID: id, Currency: bal.Currency, Amount: bal.Fixed()})
}

// ExpireTransfers handles POST /v1/admin/transfers/expire.
func (h *AdminHandler) ExpireTransfers(w http.ResponseWriter, r *http.Request) {
	n, err := h.transfers.Expire(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models.ExpirySweep{Expired: n})
}
