// Package api provides the HTTP REST API of matsecom.
//
// # Routes
//
// Every route lives under /api/v1:
//
//	GET    /subscribers                 list subscribers
//	POST   /subscribers                 register a subscriber
//	GET    /subscribers/{id}            subscriber detail
//	DELETE /subscribers/{id}            delete a subscriber with its sessions and invoices
//	POST   /subscribers/import          CSV import (raw body or multipart field csv_file)
//	GET    /subscribers/export          CSV export
//	GET    /subscribers/{id}/sessions   sessions of one subscriber (?paid=true|false)
//	GET    /subscribers/{id}/invoices   invoices of one subscriber
//	GET    /sessions                    all sessions (?subscriber_id=, ?paid=)
//	POST   /sessions/simulate           simulate a session
//	POST   /invoices                    invoice a subscriber's unpaid sessions
//	GET    /invoices/{id}               invoice detail
//	GET    /catalog                     reference data
//
// # Errors
//
// Errors are JSON objects with an "error" message. Unknown ids answer 404,
// invalid input and unknown catalog keys 400, a registered IMSI 409. A refused
// simulation answers 422 and carries the outcome in "code":
//
//	{"error": "available bandwidth is below the service's required data rate",
//	 "code": "INSUFFICIENT_BANDWIDTH",
//	 "details": {"technology": "3G", "throughput": "5", "used_data_volume": "0"}}
//
// # Middleware
//
// Requests pass through request id assignment, structured logging, panic
// recovery, a body size limit, Prometheus request metrics and OpenTelemetry
// tracing via otelhttp.
package api
