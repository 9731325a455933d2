package handler

import (
	"net/http"

	"github.com/ayo6706/remittance-ledger/internal/models"
	"github.com/ayo6706/remittance-ledger/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferHandler struct {
	svc *service.TransferService
}

func NewTransferHandler(svc *service.TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

type QuoteRequest struct {
	Amount             string `json:"amount" validate:"required,positive_amount"`
	Currency           string `json:"currency" validate:"required,len=3"`
	ReceiverOfficeID   string `json:"receiver_office_id" validate:"required,uuid"`
	DestinationCountry string `json:"destination_country,omitempty" validate:"omitempty,country"`
}

type CreateTransferRequest struct {
	DestinationCountry string `json:"destination_country" validate:"required,country"`
	ReceiverOfficeID   string `json:"receiver_office_id" validate:"required,uuid"`
	Amount             string `json:"amount" validate:"required,positive_amount"`
	Currency           string `json:"currency" validate:"required,len=3"`
	ReceiverName       string `json:"receiver_name" validate:"required,max=200"`
	ReceiverPhone      string `json:"receiver_phone,omitempty" validate:"max=32"`
	Notes              string `json:"notes,omitempty" validate:"max=500"`
}

type RedeemRequest struct {
	TransferCode string `json:"transfer_code" validate:"required,len=6,numeric"`
	ReceiverCode string `json:"receiver_code,omitempty" validate:"omitempty,len=6,numeric"`
}

type InternalTransferRequest struct {
	ReceiverAccountID string `json:"receiver_account_id" validate:"required,uuid"`
	Amount            string `json:"amount" validate:"required,positive_amount"`
	Currency          string `json:"currency" validate:"required,len=3"`
}

// Quote handles POST /v1/transfers/quote.
func (h *TransferHandler) Quote(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestPrincipal(w, r); !ok {
		return
	}
	var req QuoteRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := h.svc.Quote(r.Context(), service.QuoteRequest{
		Amount:             decimal.RequireFromString(req.Amount),
		Currency:           req.Currency,
		ReceiverOfficeID:   uuid.MustParse(req.ReceiverOfficeID),
		DestinationCountry: req.DestinationCountry,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, quoteView(q))
}

// CreateTransfer handles POST /v1/transfers. The response is the only place the codes are
// ever returned in clear.
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	var req CreateTransferRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.svc.Create(r.Context(), p, service.CreateTransferRequest{
		DestinationCountry: req.DestinationCountry,
		ReceiverOfficeID:   uuid.MustParse(req.ReceiverOfficeID),
		Amount:             decimal.RequireFromString(req.Amount),
		Currency:           req.Currency,
		ReceiverName:       req.ReceiverName,
		ReceiverPhone:      req.ReceiverPhone,
		Notes:              req.Notes,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, transferView(t))
}

// RedeemTransfer handles POST /v1/transfers/redeem.
func (h *TransferHandler) RedeemTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	var req RedeemRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.svc.Redeem(r.Context(), p, service.RedeemRequest{TransferCode: req.TransferCode, ReceiverCode: req.ReceiverCode})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, redeemedView(t))
}

// CancelTransfer handles POST /v1/transfers/{id}/cancel.
func (h *TransferHandler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.svc.Cancel(r.Context(), p, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, cancelledView(t))
}

// GetTransfer handles GET /v1/transfers/{id}.
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.svc.GetTransfer(r.Context(), p, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, transferView(t))
}

// ListHistory handles GET /v1/accounts/{id}/transfers.
func (h *TransferHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	page := max(queryInt(r, "page", 1), 1)
	pageSize := queryInt(r, "page_size", 20)
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	rows, err := h.svc.ListHistory(r.Context(), p, id, int32(pageSize), int32((page-1)*pageSize))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	out := make([]models.Transfer, 0, len(rows))
	for _, t := range rows {
		out = append(out, transferView(t))
	}
	RespondJSON(w, http.StatusOK, map[string]any{"transfers": out, "page": page, "page_size": pageSize})
}

// InternalTransfer handles POST /v1/transfers/internal.
func (h *TransferHandler) InternalTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	var req InternalTransferRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.InternalTransfer(r.Context(), p, service.InternalTransferRequest{
		ReceiverAccountID: uuid.MustParse(req.ReceiverAccountID),
		Amount:            decimal.RequireFromString(req.Amount),
		Currency:          req.Currency,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, internalTransferView(res))
}
