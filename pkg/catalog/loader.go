package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// fileCatalog is the on-disk layout of a catalog file.
type fileCatalog struct {
	Technologies []struct {
		Name              string `yaml:"name"`
		MaximumThroughput *int64 `yaml:"maximum_throughput"`
		VoiceCallSupport  bool   `yaml:"voice_call_support"`
		Percentages       []struct {
			SignalQuality string `yaml:"signal_quality"`
			Value         string `yaml:"value"`
		} `yaml:"throughput_percentages"`
	} `yaml:"technologies"`

	Terminals []struct {
		Name         string   `yaml:"name"`
		Technologies []string `yaml:"technologies"`
	} `yaml:"terminals"`

	Subscriptions []struct {
		ID                  string `yaml:"id"`
		Name                string `yaml:"name"`
		BasicFee            int64  `yaml:"basic_fee"`
		MinutesIncluded     int64  `yaml:"minutes_included"`
		PricePerExtraMinute int64  `yaml:"price_per_extra_minute"`
		DataVolumeCap       int64  `yaml:"data_volume_cap"`
	} `yaml:"subscriptions"`

	Services []struct {
		ID               string `yaml:"id"`
		Name             string `yaml:"name"`
		Type             string `yaml:"type"`
		RAN              string `yaml:"ran"`
		RequiredDataRate string `yaml:"required_data_rate"`
	} `yaml:"services"`
}

// Parse builds a catalog from YAML content.
func Parse(content []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(content, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(fc.Technologies) == 0 {
		return nil, fmt.Errorf("catalog defines no technologies")
	}

	var d Data
	for _, t := range fc.Technologies {
		tech := Technology{
			ID:                TechnologyID(t.Name),
			MaximumThroughput: t.MaximumThroughput,
			VoiceCallSupport:  t.VoiceCallSupport,
		}
		for _, p := range t.Percentages {
			q, err := ParseSignalQuality(p.SignalQuality)
			if err != nil {
				return nil, fmt.Errorf("technology %q: %w", t.Name, err)
			}
			v, err := decimal.NewFromString(p.Value)
			if err != nil {
				return nil, fmt.Errorf("technology %q: invalid percentage %q: %w", t.Name, p.Value, err)
			}
			tech.ThroughputPercentages = append(tech.ThroughputPercentages, ThroughputPercentage{SignalQuality: q, Value: v})
		}
		d.Technologies = append(d.Technologies, tech)
	}

	for _, t := range fc.Terminals {
		term := Terminal{ID: TerminalID(t.Name)}
		for _, id := range t.Technologies {
			term.Technologies = append(term.Technologies, TechnologyID(id))
		}
		d.Terminals = append(d.Terminals, term)
	}

	for _, s := range fc.Subscriptions {
		d.Subscriptions = append(d.Subscriptions, Subscription{
			ID:                  SubscriptionID(s.ID),
			Name:                s.Name,
			BasicFee:            s.BasicFee,
			MinutesIncluded:     s.MinutesIncluded,
			PricePerExtraMinute: s.PricePerExtraMinute,
			DataVolumeCap:       s.DataVolumeCap,
		})
	}

	for _, s := range fc.Services {
		rate := decimal.Zero
		if s.RequiredDataRate != "" {
			r, err := decimal.NewFromString(s.RequiredDataRate)
			if err != nil {
				return nil, fmt.Errorf("service %q: invalid data rate %q: %w", s.ID, s.RequiredDataRate, err)
			}
			rate = r
		}
		d.Services = append(d.Services, Service{
			ID:                    ServiceID(s.ID),
			Name:                  s.Name,
			Type:                  ServiceType(s.Type),
			RequiredRANGeneration: RANGeneration(s.RAN),
			RequiredDataRate:      rate,
		})
	}

	return New(d)
}

// LoadFile reads and parses a catalog file.
func LoadFile(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(content)
}

// Default returns the built-in GreenMobil catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}
