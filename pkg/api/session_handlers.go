package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/httputil"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/session"
	"github.com/platinummonkey/matsecom/pkg/storage"
)

// SessionHandlers handles session simulation and session listing
type SessionHandlers struct {
	simulator   Simulator
	subscribers SubscriberService
	usage       storage.UsageReader
}

// NewSessionHandlers creates a new SessionHandlers
func NewSessionHandlers(simulator Simulator, subscribers SubscriberService, usage storage.UsageReader) *SessionHandlers {
	return &SessionHandlers{
		simulator:   simulator,
		subscribers: subscribers,
		usage:       usage,
	}
}

// RegisterRoutes registers session routes
func (h *SessionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	router.HandleFunc("/sessions/simulate", h.SimulateSession).Methods("POST")
	router.HandleFunc("/subscribers/{id:[0-9]+}/sessions", h.ListSubscriberSessions).Methods("GET")
}

// SimulateRequest is the body of POST /sessions/simulate.
type SimulateRequest struct {
	SubscriberID int64             `json:"subscriber_id"`
	Service      catalog.ServiceID `json:"service"`
	Duration     int64             `json:"duration"`
}

// SimulateSession handles POST /sessions/simulate. A recorded session answers
// 201; a refused one answers 422 with the outcome as error code.
func (h *SessionHandlers) SimulateSession(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.SubscriberID <= 0 {
		httputil.WriteBadRequest(w, "subscriber_id is required")
		return
	}
	if req.Service == "" {
		httputil.WriteBadRequest(w, "service is required")
		return
	}

	res, err := h.simulator.Simulate(r.Context(), session.Request{
		SubscriberID: req.SubscriberID,
		Service:      req.Service,
		Duration:     req.Duration,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.Outcome != session.OK {
		details := map[string]string{
			"throughput":       res.Throughput.String(),
			"used_data_volume": strconv.FormatInt(res.UsedDataVolume, 10),
		}
		if res.Technology != "" {
			details["technology"] = string(res.Technology)
		}
		httputil.WriteDetailedError(w, http.StatusUnprocessableEntity, string(res.Outcome), res.Outcome.Message(), details)
		return
	}
	httputil.WriteCreated(w, res)
}

// ListSessions handles GET /sessions. Optional query parameters are
// subscriber_id and paid.
func (h *SessionHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	subscriberID, err := httputil.ParseQueryInt64(r, "subscriber_id", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	h.writeSessions(w, r, subscriberID)
}

// ListSubscriberSessions handles GET /subscribers/{id}/sessions
func (h *SessionHandlers) ListSubscriberSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.subscribers.Get(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeSessions(w, r, id)
}

func (h *SessionHandlers) writeSessions(w http.ResponseWriter, r *http.Request, subscriberID int64) {
	paid, err := httputil.ParseQueryBool(r, "paid")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	sessions, err := h.usage.ListSessions(r.Context(), model.SessionFilter{SubscriberID: subscriberID, Paid: paid})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	httputil.WriteSuccess(w, sessions)
}
