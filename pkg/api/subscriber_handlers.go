package api

import (
	"bytes"
	"io"
	"mime"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/httputil"
	"github.com/platinummonkey/matsecom/pkg/model"
)

// CSVFormField is the multipart field carrying an uploaded subscriber file.
const CSVFormField = "csv_file"

// SubscriberHandlers handles subscriber-related HTTP requests
type SubscriberHandlers struct {
	subscribers SubscriberService
}

// NewSubscriberHandlers creates a new SubscriberHandlers
func NewSubscriberHandlers(subscribers SubscriberService) *SubscriberHandlers {
	return &SubscriberHandlers{subscribers: subscribers}
}

// RegisterRoutes registers subscriber routes
func (h *SubscriberHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/subscribers", h.ListSubscribers).Methods("GET")
	router.HandleFunc("/subscribers", h.CreateSubscriber).Methods("POST")
	router.HandleFunc("/subscribers/import", h.ImportSubscribers).Methods("POST")
	router.HandleFunc("/subscribers/export", h.ExportSubscribers).Methods("GET")
	router.HandleFunc("/subscribers/{id:[0-9]+}", h.GetSubscriber).Methods("GET")
	router.HandleFunc("/subscribers/{id:[0-9]+}", h.DeleteSubscriber).Methods("DELETE")
}

// CreateSubscriberRequest is the body of POST /subscribers.
type CreateSubscriberRequest struct {
	Forename     string                 `json:"forename"`
	Surname      string                 `json:"surname"`
	IMSI         string                 `json:"imsi"`
	Terminal     catalog.TerminalID     `json:"terminal_type"`
	Subscription catalog.SubscriptionID `json:"subscription_type"`
}

// ListSubscribers handles GET /subscribers
func (h *SubscriberHandlers) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscribers.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if subs == nil {
		subs = []*model.Subscriber{}
	}
	httputil.WriteSuccess(w, subs)
}

// CreateSubscriber handles POST /subscribers
func (h *SubscriberHandlers) CreateSubscriber(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	sub := &model.Subscriber{
		Forename:     req.Forename,
		Surname:      req.Surname,
		IMSI:         req.IMSI,
		Terminal:     req.Terminal,
		Subscription: req.Subscription,
	}
	if err := h.subscribers.Create(r.Context(), sub); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, sub)
}

// GetSubscriber handles GET /subscribers/{id}
func (h *SubscriberHandlers) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.subscribers.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sub)
}

// DeleteSubscriber handles DELETE /subscribers/{id}
func (h *SubscriberHandlers) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.subscribers.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ImportSubscribers handles POST /subscribers/import. The CSV is either the raw
// body or the csv_file field of a multipart form.
func (h *SubscriberHandlers) ImportSubscribers(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, _, err := r.FormFile(CSVFormField)
		if err != nil {
			httputil.WriteBadRequest(w, "missing "+CSVFormField+" upload")
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.subscribers.Import(r.Context(), src)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// ExportSubscribers handles GET /subscribers/export
func (h *SubscriberHandlers) ExportSubscribers(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.subscribers.Export(r.Context(), &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="subscribers.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
