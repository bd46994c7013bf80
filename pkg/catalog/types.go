package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TechnologyID identifies a radio technology by its generation name ("2G", "3G", "4G").
type TechnologyID string

// TerminalID identifies a terminal model by its name.
type TerminalID string

// SubscriptionID identifies a tariff tier by its short code ("GS", "GM", "GL").
type SubscriptionID string

// ServiceID identifies a service by its short code ("VC", "BN", "AD", "AV").
type ServiceID string

const (
	Tech2G TechnologyID = "2G"
	Tech3G TechnologyID = "3G"
	Tech4G TechnologyID = "4G"
)

// SignalQuality classifies the radio conditions an achievable throughput applies to.
type SignalQuality string

const (
	SignalGood          SignalQuality = "good"
	SignalMedium        SignalQuality = "medium"
	SignalLow           SignalQuality = "low"
	SignalNotApplicable SignalQuality = "n/a"
)

// ParseSignalQuality accepts both the long names and the single-letter codes.
func ParseSignalQuality(s string) (SignalQuality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good", "g":
		return SignalGood, nil
	case "medium", "m":
		return SignalMedium, nil
	case "low", "l":
		return SignalLow, nil
	case "n/a", "na", "n", "not_applicable":
		return SignalNotApplicable, nil
	default:
		return "", fmt.Errorf("unknown signal quality %q", s)
	}
}

// ThroughputPercentage is the fraction of a technology's maximum throughput that is
// achievable under a given signal quality.
type ThroughputPercentage struct {
	SignalQuality SignalQuality   `json:"signal_quality"`
	Value         decimal.Decimal `json:"value"`
}

// Technology is a radio access technology. A technology without MaximumThroughput or
// without percentages has no measurable data capability.
type Technology struct {
	ID                    TechnologyID           `json:"name"`
	MaximumThroughput     *int64                 `json:"maximum_throughput,omitempty"`
	VoiceCallSupport      bool                   `json:"voice_call_support"`
	ThroughputPercentages []ThroughputPercentage `json:"achievable_throughput_percentages"`
}

// DataCapable reports whether the technology takes part in throughput selection.
func (t Technology) DataCapable() bool {
	return t.MaximumThroughput != nil && len(t.ThroughputPercentages) > 0
}

// Terminal is a device model and the technologies it supports.
type Terminal struct {
	ID           TerminalID     `json:"name"`
	Technologies []TechnologyID `json:"supported_technologies"`
}

// Subscription is a tariff tier. Money is in the smallest currency unit and volume in
// the smallest data unit.
type Subscription struct {
	ID                  SubscriptionID `json:"id"`
	Name                string         `json:"name"`
	BasicFee            int64          `json:"basic_fee"`
	MinutesIncluded     int64          `json:"minutes_included"`
	PricePerExtraMinute int64          `json:"price_per_extra_minute"`
	DataVolumeCap       int64          `json:"data_volume_cap"`
}

// ServiceType is the kind of network usage a service represents.
type ServiceType string

const (
	ServiceVoiceCall      ServiceType = "voice_call"
	ServiceBrowsingSocial ServiceType = "browsing_social"
	ServiceAppDownload    ServiceType = "app_download"
	ServiceAdaptiveVideo  ServiceType = "adaptive_video"
)

// Valid reports whether t is one of the known service types.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceVoiceCall, ServiceBrowsingSocial, ServiceAppDownload, ServiceAdaptiveVideo:
		return true
	}
	return false
}

// RANGeneration is the radio access network generation a service needs.
type RANGeneration string

const (
	RAN2G     RANGeneration = "2G"
	RAN3Gor4G RANGeneration = "3G/4G"
)

// Service is a usage type a subscriber can request.
type Service struct {
	ID                    ServiceID       `json:"id"`
	Name                  string          `json:"name"`
	Type                  ServiceType     `json:"type"`
	RequiredRANGeneration RANGeneration   `json:"required_ran_generation"`
	RequiredDataRate      decimal.Decimal `json:"required_data_rate"`
}

// IsVoice reports whether the service takes the voice path of the simulator.
func (s Service) IsVoice() bool {
	return s.Type == ServiceVoiceCall
}
