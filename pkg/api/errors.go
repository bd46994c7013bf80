package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/httputil"
	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/registry"
	"github.com/platinummonkey/matsecom/pkg/session"
	"github.com/platinummonkey/matsecom/pkg/storage"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		imsiErr       *registry.InvalidIMSIError
		validationErr *registry.ValidationError
		importErr     *registry.ImportError
	)
	switch {
	case errors.Is(err, registry.ErrSubscriberNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrDuplicateIMSI), errors.Is(err, storage.ErrDuplicateIMSI):
		return http.StatusConflict
	case errors.As(err, &imsiErr), errors.As(err, &validationErr), errors.As(err, &importErr),
		errors.Is(err, registry.ErrInvalidHeader),
		errors.Is(err, session.ErrInvalidDuration),
		errors.Is(err, catalog.ErrUnknownTerminal),
		errors.Is(err, catalog.ErrUnknownSubscription),
		errors.Is(err, catalog.ErrUnknownService),
		errors.Is(err, catalog.ErrUnknownTechnology):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with the status it maps to. Server errors are
// logged and their detail is not echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).Error("Request failed")
		if status == http.StatusServiceUnavailable {
			httputil.WriteErrorMessage(w, status, "service busy, retry later")
			return
		}
		httputil.WriteErrorMessage(w, status, "internal server error")
		return
	}
	httputil.WriteError(w, status, err)
}
