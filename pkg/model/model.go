// Package model holds the subscriber, session and invoice records shared by the
// registry, the session simulator, the billing package and every store backend.
package model

import (
	"time"

	"github.com/platinummonkey/matsecom/pkg/catalog"
)

// Subscriber is a registered SIM holder. Terminal and subscription are catalog keys,
// never copies of the catalog entries.
type Subscriber struct {
	ID           int64                  `json:"id"`
	Forename     string                 `json:"forename"`
	Surname      string                 `json:"surname"`
	IMSI         string                 `json:"imsi"`
	Terminal     catalog.TerminalID     `json:"terminal_type"`
	Subscription catalog.SubscriptionID `json:"subscription_type"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Session is one simulated network usage. Sessions are created only by the
// simulator and only ever change by flipping Paid from false to true.
type Session struct {
	ID           int64             `json:"id"`
	SubscriberID int64             `json:"subscriber_id"`
	Service      catalog.ServiceID `json:"service"`
	Timestamp    time.Time         `json:"timestamp"`
	Duration     int64             `json:"duration"`
	DataVolume   int64             `json:"data_volume"`
	CallSeconds  int64             `json:"call_seconds"`
	Paid         bool              `json:"paid"`
}

// Invoice summarizes the sessions claimed by one invoice run. Immutable once created.
type Invoice struct {
	ID           int64     `json:"id"`
	SubscriberID int64     `json:"subscriber_id"`
	Timestamp    time.Time `json:"timestamp"`
	DataVolume   int64     `json:"data_volume"`
	// CallMinutes is billed minutes, one more than the whole minutes called,
	// not the minutes consumed.
	CallMinutes  int64     `json:"call_minutes"`
	Charges      int64     `json:"charges"`
	SessionCount int       `json:"session_count"`
}

// SessionFilter narrows session queries. A nil Paid matches both states and a zero
// SubscriberID matches every subscriber.
type SessionFilter struct {
	SubscriberID int64
	Paid         *bool
}

// Bool returns a pointer to b, for building filters.
func Bool(b bool) *bool {
	return &b
}
