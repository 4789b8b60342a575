package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every endpoint onto a gorilla/mux router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(h.instrument)

	v1.HandleFunc("/accounts", h.CreateAccount).Methods(http.MethodPost)
	v1.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{accountNumber}", h.GetAccount).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{accountNumber}", h.UpdateAccount).Methods(http.MethodPut)
	v1.HandleFunc("/accounts/{accountNumber}", h.DeleteAccount).Methods(http.MethodDelete)
	v1.HandleFunc("/accounts/{accountNumber}/balance", h.GetBalance).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{accountNumber}/transactions", h.RequestTransaction).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{accountNumber}/transactions", h.ListAccountTransactions).Methods(http.MethodGet)

	// pending must be registered ahead of {uuid}
	v1.HandleFunc("/transactions/pending", h.ListPending).Methods(http.MethodGet)
	v1.HandleFunc("/transactions/{uuid}", h.GetTransaction).Methods(http.MethodGet)
	v1.HandleFunc("/transactions/{uuid}/approve", h.ApproveTransaction).Methods(http.MethodPut)
	v1.HandleFunc("/transactions/{uuid}/reject", h.RejectTransaction).Methods(http.MethodPut)
	v1.HandleFunc("/transactions/{uuid}/reversal", h.RequestReversal).Methods(http.MethodPost)

	v1.HandleFunc("/retailers", h.CreateRetailer).Methods(http.MethodPost)
	v1.HandleFunc("/retailers", h.ListRetailers).Methods(http.MethodGet)
	v1.HandleFunc("/retailers/{retailerName}", h.GetRetailer).Methods(http.MethodGet)
	v1.HandleFunc("/retailers/{retailerName}", h.UpdateRetailer).Methods(http.MethodPut)
	v1.HandleFunc("/retailers/{retailerName}", h.DeleteRetailer).Methods(http.MethodDelete)
	v1.HandleFunc("/retailers/{retailerName}/transactions", h.ListRetailerTransactions).Methods(http.MethodGet)
	v1.HandleFunc("/retailers/{retailerName}/{direction:credit|debit}/{op:sum|max}", h.Aggregate).Methods(http.MethodGet)

	v1.HandleFunc("/aggregates/{direction}/{op:sum|max}", h.Aggregate).Methods(http.MethodGet)

	return r
}
