package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/approvalledger/internal/domain"
	"github.com/punchamoorthee/approvalledger/internal/models"
	"github.com/punchamoorthee/approvalledger/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

func (h *Handler) RequestTransaction(w http.ResponseWriter, r *http.Request) {
	accountNumber := mux.Vars(r)["accountNumber"]

	var req models.TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := r.Header.Get(idempotencyHeader)
	if key != "" && req.UUID != "" && key != req.UUID {
		respondError(w, http.StatusUnprocessableEntity, "Idempotency-Key header and uuid differ")
		return
	}
	if key == "" {
		key = req.UUID
	}

	t, replayed, err := h.svc.RequestTransaction(r.Context(), service.TransactionRequest{
		AccountNumber:  accountNumber,
		Direction:      req.Direction,
		Amount:         req.Amount,
		Description:    req.Description,
		IssuedBy:       req.IssuedBy,
		IdempotencyKey: key,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	code := http.StatusAccepted
	if replayed {
		code = http.StatusOK
		w.Header().Set("X-Idempotency-Hit", "true")
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/transactions/%s", t.UUID))
	respondJSON(w, code, models.PendingResponse{ID: t.ID, UUID: t.UUID, Status: t.Status})
}

func (h *Handler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.ApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.svc.Approve(r.Context(), service.ApproveRequest{
		UUID:           mux.Vars(r)["uuid"],
		IssuedBy:       req.IssuedBy,
		CashBackAmount: req.CashBackAmount,
	})
	if errors.Is(err, domain.ErrInsufficientFunds) && t != nil {
		respondJSON(w, http.StatusPaymentRequired, models.DecisionResponse{
			Status:      t.Status,
			Reason:      domain.ReasonInsufficientFunds,
			Transaction: *t,
		})
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.DecisionResponse{
		Status:      t.Status,
		Balance:     t.Balance,
		Transaction: *t,
	})
}

func (h *Handler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.RejectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.svc.Reject(r.Context(), service.RejectRequest{
		UUID:     mux.Vars(r)["uuid"],
		IssuedBy: req.IssuedBy,
		Reason:   req.Reason,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.DecisionResponse{Status: t.Status, Reason: t.Reason, Transaction: *t})
}

func (h *Handler) RequestReversal(w http.ResponseWriter, r *http.Request) {
	var req models.ReversalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, replayed, err := h.svc.RequestReversal(r.Context(), mux.Vars(r)["uuid"], req.IssuedBy)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	code := http.StatusAccepted
	if replayed {
		code = http.StatusOK
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/transactions/%s", t.UUID))
	respondJSON(w, code, models.PendingResponse{ID: t.ID, UUID: t.UUID, Status: t.Status})
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTransaction(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Resolve(r.Context(), mux.Vars(r)["accountNumber"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.BalanceResponse{
		AccountNumber:  snap.AccountNumber,
		Balance:        snap.Balance,
		LastApprovedID: snap.LastApprovedID,
	})
}

func (h *Handler) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeDenied := false
	if v := q.Get("include_denied"); v != "" {
		var err error
		if includeDenied, err = strconv.ParseBool(v); err != nil {
			respondError(w, http.StatusBadRequest, "invalid include_denied")
			return
		}
	}

	txs, err := h.svc.ListForAccount(r.Context(), mux.Vars(r)["accountNumber"], q.Get("issued_by"), includeDenied)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

func (h *Handler) ListRetailerTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.ListForIssuer(r.Context(), mux.Vars(r)["retailerName"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var olderThan time.Duration
	if raw := q.Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			respondError(w, http.StatusBadRequest, "older_than must be a non-negative duration such as 15m")
			return
		}
		olderThan = d
	}

	txs, err := h.svc.ListPending(r.Context(), q.Get("account_number"), olderThan)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

// Aggregate serves both /aggregates/{direction}/{op} and the retailer-scoped
// /retailers/{retailerName}/{direction}/{op}.
func (h *Handler) Aggregate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q := r.URL.Query()

	direction := domain.Direction(vars["direction"])
	issuedBy := q.Get("issued_by")
	if name, ok := vars["retailerName"]; ok {
		issuedBy = name
	}
	op := vars["op"]

	var (
		value decimal.Decimal
		count int64
		err   error
	)
	switch op {
	case "sum":
		value, count, err = h.svc.Sum(r.Context(), direction, issuedBy, q.Get("account_number"))
	case "max":
		value, count, err = h.svc.Max(r.Context(), direction, issuedBy, q.Get("account_number"))
	default:
		respondError(w, http.StatusNotFound, "unknown aggregate")
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.AggregateResponse{
		Direction: direction,
		IssuedBy:  issuedBy,
		Operation: op,
		Value:     value,
		Count:     count,
		Empty:     count == 0,
	})
}
