// Package session simulates network sessions of registered subscribers.
//
// A voice call succeeds when the subscriber's terminal supports at least one
// technology with voice calls; its call time is the requested duration. Any other
// service takes the data path: the fastest technology of the terminal under the
// configured throughput policy must reach the service's required data rate, and
// the resulting volume (throughput × duration) added to everything the subscriber
// has used so far must stay within the subscription's data volume cap.
//
// Refusals are Outcome values, not errors, and record nothing:
//
//	res, err := sim.Simulate(ctx, session.Request{SubscriberID: id, Service: "AD", Duration: 60})
//	if err != nil {
//		return err
//	}
//	if res.Outcome != session.OK {
//		log.Infof("refused: %s", res.Outcome.Message())
//	}
//
// The read of prior usage and the write of the new session run in one storage
// unit of work per subscriber, so concurrent simulations cannot overrun the cap.
package session
