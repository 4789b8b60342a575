package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/approvalledger/internal/domain"
	"github.com/punchamoorthee/approvalledger/internal/models"
)

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.AccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc := &domain.Account{
		AccountNumber: req.AccountNumber,
		Username:      req.Username,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		PIN:           req.PIN,
	}
	if err := h.svc.CreateAccount(r.Context(), acc); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, acc)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.GetAccount(r.Context(), mux.Vars(r)["accountNumber"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acc)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.AccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc := &domain.Account{
		AccountNumber: mux.Vars(r)["accountNumber"],
		Username:      req.Username,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		PIN:           req.PIN,
	}
	if err := h.svc.UpdateAccount(r.Context(), acc); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acc)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAccount(r.Context(), mux.Vars(r)["accountNumber"]); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) CreateRetailer(w http.ResponseWriter, r *http.Request) {
	var req models.RetailerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	retailer := &domain.Retailer{RetailerName: req.RetailerName, Address: req.Address, Location: req.Location}
	if err := h.svc.CreateRetailer(r.Context(), retailer); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, retailer)
}

func (h *Handler) ListRetailers(w http.ResponseWriter, r *http.Request) {
	retailers, err := h.svc.ListRetailers(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, retailers)
}

func (h *Handler) GetRetailer(w http.ResponseWriter, r *http.Request) {
	retailer, err := h.svc.GetRetailer(r.Context(), mux.Vars(r)["retailerName"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, retailer)
}

func (h *Handler) UpdateRetailer(w http.ResponseWriter, r *http.Request) {
	var req models.RetailerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	retailer := &domain.Retailer{
		RetailerName: mux.Vars(r)["retailerName"],
		Address:      req.Address,
		Location:     req.Location,
	}
	if err := h.svc.UpdateRetailer(r.Context(), retailer); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, retailer)
}

func (h *Handler) DeleteRetailer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRetailer(r.Context(), mux.Vars(r)["retailerName"]); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
