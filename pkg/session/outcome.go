package session

import (
	"github.com/shopspring/decimal"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/model"
)

// Outcome is the business result of a simulation request. Only OK persists a
// session.
type Outcome string

const (
	OK                     Outcome = "OK"
	CallingNotSupported    Outcome = "CALLING_NOT_SUPPORTED"
	InsufficientBandwidth  Outcome = "INSUFFICIENT_BANDWIDTH"
	InsufficientDataVolume Outcome = "INSUFFICIENT_DATA_VOLUME"
)

// Message is a human readable description of the outcome.
func (o Outcome) Message() string {
	switch o {
	case OK:
		return "session recorded"
	case CallingNotSupported:
		return "terminal does not support voice calls"
	case InsufficientBandwidth:
		return "available bandwidth is below the service's required data rate"
	case InsufficientDataVolume:
		return "session would exceed the subscription's data volume cap"
	}
	return string(o)
}

// Request asks for one session of a service lasting Duration seconds.
type Request struct {
	SubscriberID int64             `json:"subscriber_id"`
	Service      catalog.ServiceID `json:"service"`
	Duration     int64             `json:"duration"`
}

// Result describes what a simulation decided. Session is set only for OK.
// Technology and Throughput are the fastest pairing found on the data path.
type Result struct {
	Outcome        Outcome               `json:"outcome"`
	Session        *model.Session        `json:"session,omitempty"`
	Technology     catalog.TechnologyID  `json:"technology,omitempty"`
	SignalQuality  catalog.SignalQuality `json:"signal_quality,omitempty"`
	Throughput     decimal.Decimal       `json:"throughput"`
	UsedDataVolume int64                 `json:"used_data_volume"`
}
