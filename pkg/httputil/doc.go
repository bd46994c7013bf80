// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, subscriber)
//	httputil.WriteCreated(w, invoice)
//	httputil.WriteNotFoundError(w, "subscriber not found")
//	httputil.WriteDetailedError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_BANDWIDTH", msg, nil)
//
// Bodies are encoded with goccy/go-json.
//
// # Request Parsing
//
//	var req SimulateRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	paid, err := httputil.ParseQueryBool(r, "paid")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(10<<20),
//	)
//
// RequestIDMiddleware reuses an incoming X-Request-ID or generates a UUID, and
// LoggingMiddleware stores a logger carrying that id in the request context.
package httputil
