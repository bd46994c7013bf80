package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/httputil"
)

// CatalogHandlers serves the reference data
type CatalogHandlers struct {
	catalog catalog.Provider
}

// NewCatalogHandlers creates a new CatalogHandlers
func NewCatalogHandlers(provider catalog.Provider) *CatalogHandlers {
	return &CatalogHandlers{catalog: provider}
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/catalog", h.GetCatalog).Methods("GET")
}

// CatalogResponse is the body of GET /catalog.
type CatalogResponse struct {
	Technologies  []catalog.Technology   `json:"technologies"`
	Terminals     []catalog.Terminal     `json:"terminals"`
	Subscriptions []catalog.Subscription `json:"subscriptions"`
	Services      []catalog.Service      `json:"services"`
}

// GetCatalog handles GET /catalog
func (h *CatalogHandlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	c := h.catalog.Current()
	httputil.WriteSuccess(w, CatalogResponse{
		Technologies:  c.Technologies(),
		Terminals:     c.Terminals(),
		Subscriptions: c.Subscriptions(),
		Services:      c.Services(),
	})
}
