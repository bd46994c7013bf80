package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/matsecom/pkg/httputil"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/storage"
)

// InvoiceHandlers handles invoice generation and lookup
type InvoiceHandlers struct {
	invoicer    Invoicer
	subscribers SubscriberService
	usage       storage.UsageReader
}

// NewInvoiceHandlers creates a new InvoiceHandlers
func NewInvoiceHandlers(invoicer Invoicer, subscribers SubscriberService, usage storage.UsageReader) *InvoiceHandlers {
	return &InvoiceHandlers{
		invoicer:    invoicer,
		subscribers: subscribers,
		usage:       usage,
	}
}

// RegisterRoutes registers invoice routes
func (h *InvoiceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/invoices", h.CreateInvoice).Methods("POST")
	router.HandleFunc("/invoices/{id:[0-9]+}", h.GetInvoice).Methods("GET")
	router.HandleFunc("/subscribers/{id:[0-9]+}/invoices", h.ListSubscriberInvoices).Methods("GET")
}

// CreateInvoiceRequest is the body of POST /invoices.
type CreateInvoiceRequest struct {
	SubscriberID int64 `json:"subscriber_id"`
}

// CreateInvoice handles POST /invoices
func (h *InvoiceHandlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.SubscriberID <= 0 {
		httputil.WriteBadRequest(w, "subscriber_id is required")
		return
	}

	inv, err := h.invoicer.Invoice(r.Context(), req.SubscriberID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, inv)
}

// GetInvoice handles GET /invoices/{id}
func (h *InvoiceHandlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.usage.GetInvoice(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, inv)
}

// ListSubscriberInvoices handles GET /subscribers/{id}/invoices
func (h *InvoiceHandlers) ListSubscriberInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.subscribers.Get(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	invoices, err := h.usage.ListInvoices(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if invoices == nil {
		invoices = []*model.Invoice{}
	}
	httputil.WriteSuccess(w, invoices)
}
