package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/httputil"
	"github.com/platinummonkey/matsecom/pkg/middleware"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/registry"
	"github.com/platinummonkey/matsecom/pkg/session"
	"github.com/platinummonkey/matsecom/pkg/storage"
)

// maxBodyBytes bounds request bodies, CSV uploads included.
const maxBodyBytes = 10 << 20

// SubscriberService is the part of the registry the API exposes.
type SubscriberService interface {
	Create(ctx context.Context, sub *model.Subscriber) error
	Get(ctx context.Context, id int64) (*model.Subscriber, error)
	List(ctx context.Context) ([]*model.Subscriber, error)
	Delete(ctx context.Context, id int64) error
	Import(ctx context.Context, r io.Reader) (*registry.ImportResult, error)
	Export(ctx context.Context, w io.Writer) error
}

// Simulator runs session simulations.
type Simulator interface {
	Simulate(ctx context.Context, req session.Request) (*session.Result, error)
}

// Invoicer bills a subscriber's unpaid sessions.
type Invoicer interface {
	Invoice(ctx context.Context, subscriberID int64) (*model.Invoice, error)
}

// Dependencies are the services behind the API.
type Dependencies struct {
	Subscribers SubscriberService
	Simulator   Simulator
	Invoicer    Invoicer
	Usage       storage.UsageReader
	Catalog     catalog.Provider
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	// RateLimiter is optional. When set every client is limited per IP.
	RateLimiter middleware.Limiter
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server with every route under /api/v1.
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Server{router: mux.NewRouter()}

	s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics, routeTemplate))

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	NewSubscriberHandlers(deps.Subscribers).RegisterRoutes(v1)
	NewSessionHandlers(deps.Simulator, deps.Subscribers, deps.Usage).RegisterRoutes(v1)
	NewInvoiceHandlers(deps.Invoicer, deps.Subscribers, deps.Usage).RegisterRoutes(v1)
	NewCatalogHandlers(deps.Catalog).RegisterRoutes(v1)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})

	mws := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.RecoveryMiddleware(deps.Logger),
	}
	if deps.RateLimiter != nil {
		mws = append(mws, middleware.RateLimit(deps.RateLimiter, deps.Logger))
	}
	mws = append(mws, httputil.MaxBytesMiddleware(maxBodyBytes))
	chain := httputil.Chain(mws...)
	s.handler = otelhttp.NewHandler(chain(s.router), "matsecom-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tpl
}
