package billing

import (
	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/model"
)

// Usage is the summed consumption of a set of sessions and the charges it costs
// under one subscription.
type Usage struct {
	DataVolume    int64 `json:"data_volume"`
	CallSeconds   int64 `json:"call_seconds"`
	BilledMinutes int64 `json:"billed_minutes"`
	Charges       int64 `json:"charges"`
	Sessions      int   `json:"sessions"`
}

// BilledMinutes converts call time to billable minutes. Every started billing run
// counts one minute more than the whole minutes of call time, including a run
// with no calls at all.
func BilledMinutes(callSeconds int64) int64 {
	return callSeconds/60 + 1
}

// Charges is the basic fee plus the price of every billed minute above the
// included minutes.
func Charges(sub catalog.Subscription, billedMinutes int64) int64 {
	extra := billedMinutes - sub.MinutesIncluded
	if extra < 0 {
		extra = 0
	}
	return sub.BasicFee + extra*sub.PricePerExtraMinute
}

// Aggregate sums sessions and prices them under sub. The result does not depend
// on the order of sessions. No quota is enforced here.
func Aggregate(sessions []*model.Session, sub catalog.Subscription) Usage {
	var u Usage
	for _, s := range sessions {
		u.DataVolume += s.DataVolume
		u.CallSeconds += s.CallSeconds
	}
	u.Sessions = len(sessions)
	u.BilledMinutes = BilledMinutes(u.CallSeconds)
	u.Charges = Charges(sub, u.BilledMinutes)
	return u
}

// UsedDataVolume sums only the data volume of sessions.
func UsedDataVolume(sessions []*model.Session) int64 {
	var total int64
	for _, s := range sessions {
		total += s.DataVolume
	}
	return total
}
