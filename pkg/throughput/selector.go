// Package throughput picks the achievable data rate of a terminal across the radio
// technologies it supports.
package throughput

import (
	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/shopspring/decimal"
)

// Choice pairs a technology with the percentage a policy picked for it.
type Choice struct {
	Technology catalog.Technology
	Percentage catalog.ThroughputPercentage
}

// Effective is maximum_throughput × percentage.
func (c Choice) Effective() decimal.Decimal {
	if c.Technology.MaximumThroughput == nil {
		return decimal.Zero
	}
	return decimal.NewFromInt(*c.Technology.MaximumThroughput).Mul(c.Percentage.Value)
}

// Select returns one choice per data-capable technology, in the order the
// technologies are given. Technologies without a maximum throughput or without
// percentages are skipped.
func Select(techs []catalog.Technology, policy Policy) []Choice {
	choices := make([]Choice, 0, len(techs))
	for _, tech := range techs {
		if !tech.DataCapable() {
			continue
		}
		choices = append(choices, Choice{Technology: tech, Percentage: policy.Choose(tech)})
	}
	return choices
}

// Fastest returns the choice with the highest effective throughput. On a tie the
// earlier choice wins. ok is false when choices is empty.
func Fastest(choices []Choice) (best Choice, ok bool) {
	for i, c := range choices {
		if i == 0 || c.Effective().GreaterThan(best.Effective()) {
			best = c
			ok = true
		}
	}
	return best, ok
}

// Effective runs Select and Fastest and returns the winning throughput, or zero
// when the terminal has no data-capable technology.
func Effective(techs []catalog.Technology, policy Policy) (decimal.Decimal, Choice, bool) {
	best, ok := Fastest(Select(techs, policy))
	if !ok {
		return decimal.Zero, Choice{}, false
	}
	return best.Effective(), best, true
}
