package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/matsecom/pkg/billing"
	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/lock"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/storage"
	"github.com/platinummonkey/matsecom/pkg/throughput"
)

var tracer = otel.Tracer("github.com/platinummonkey/matsecom/pkg/session")

// Duration bounds of a single session, in seconds.
const (
	MinDuration int64 = 1
	MaxDuration int64 = 2_500_000
)

// ErrInvalidDuration is returned for durations outside MinDuration..MaxDuration.
var ErrInvalidDuration = errors.New("invalid session duration")

// Simulator decides whether a subscriber may use a service and records the
// resulting session.
type Simulator struct {
	store   storage.Store
	catalog catalog.Provider
	policy  throughput.Policy
	locker  lock.Locker
	metrics *observability.Metrics
	logger  *observability.Logger
	now     func() time.Time
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLocker holds a subscriber lock around each simulation in addition to the
// store's own serialization.
func WithLocker(l lock.Locker) Option {
	return func(s *Simulator) { s.locker = l }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// WithClock replaces time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// NewSimulator creates a simulator that picks throughputs with policy.
func NewSimulator(store storage.Store, provider catalog.Provider, policy throughput.Policy, logger *observability.Logger, opts ...Option) *Simulator {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Simulator{
		store:   store,
		catalog: provider,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the throughput selection policy in use.
func (s *Simulator) Policy() throughput.Policy {
	return s.policy
}

// Simulate evaluates req. A refused session is reported through Result.Outcome
// with a nil error and leaves the store untouched. Errors are reserved for
// invalid requests, unknown references and storage failures.
func (s *Simulator) Simulate(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "session.Simulate", trace.WithAttributes(
		attribute.Int64("subscriber.id", req.SubscriberID),
		attribute.String("service.id", string(req.Service)),
		attribute.Int64("session.duration", req.Duration),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "simulation failed")
		} else {
			span.SetAttributes(attribute.String("session.outcome", string(res.Outcome)))
		}
		span.End()
	}()

	if req.Duration < MinDuration || req.Duration > MaxDuration {
		return nil, fmt.Errorf("%w: %d not in %d..%d", ErrInvalidDuration, req.Duration, MinDuration, MaxDuration)
	}

	sub, err := s.store.GetSubscriber(ctx, req.SubscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber %d: %w", req.SubscriberID, err)
	}

	cat := s.catalog.Current()
	svc, err := cat.Service(req.Service)
	if err != nil {
		return nil, err
	}
	term, err := cat.Terminal(sub.Terminal)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve terminal of subscriber %d: %w", sub.ID, err)
	}
	tariff, err := cat.Subscription(sub.Subscription)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subscription of subscriber %d: %w", sub.ID, err)
	}

	if s.locker != nil {
		start := time.Now()
		unlock, err := s.locker.Lock(ctx, lock.SubscriberKey(sub.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to lock subscriber %d: %w", sub.ID, err)
		}
		defer unlock()
		s.metrics.ObserveLockWait("simulate", time.Since(start))
	}

	techs := cat.SupportedTechnologies(term)
	err = s.store.Atomically(ctx, sub.ID, func(tx storage.Tx) error {
		if svc.IsVoice() {
			res = s.voice(cat, term, req.Duration)
		} else {
			var derr error
			res, derr = s.data(ctx, tx, techs, svc, tariff, req.Duration)
			if derr != nil {
				return derr
			}
		}
		if res.Outcome != OK {
			return nil
		}

		res.Session.SubscriberID = sub.ID
		res.Session.Service = svc.ID
		res.Session.Timestamp = s.now().UTC()
		res.Session.Duration = req.Duration
		if err := tx.CreateSession(ctx, res.Session); err != nil {
			return fmt.Errorf("failed to record session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var volume, seconds int64
	if res.Session != nil {
		volume, seconds = res.Session.DataVolume, res.Session.CallSeconds
	}
	s.metrics.ObserveSimulation(string(svc.ID), string(res.Outcome), volume, seconds)
	s.logger.WithFields(map[string]interface{}{
		"subscriber_id": sub.ID,
		"service":       svc.ID,
		"duration":      req.Duration,
		"outcome":       res.Outcome,
	}).Info("Session simulated")

	return res, nil
}

func (s *Simulator) voice(cat *catalog.Catalog, term catalog.Terminal, duration int64) *Result {
	if !cat.SupportsVoice(term) {
		return &Result{Outcome: CallingNotSupported, Throughput: decimal.Zero}
	}
	return &Result{
		Outcome:    OK,
		Throughput: decimal.Zero,
		Session:    &model.Session{CallSeconds: duration},
	}
}

func (s *Simulator) data(ctx context.Context, tx storage.Tx, techs []catalog.Technology, svc catalog.Service, tariff catalog.Subscription, duration int64) (*Result, error) {
	history, err := tx.Sessions(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	used := billing.UsedDataVolume(history)

	effective, choice, _ := throughput.Effective(techs, s.policy)
	res := &Result{
		Technology:     choice.Technology.ID,
		SignalQuality:  choice.Percentage.SignalQuality,
		Throughput:     effective,
		UsedDataVolume: used,
	}

	if svc.RequiredDataRate.GreaterThan(effective) {
		res.Outcome = InsufficientBandwidth
		return res, nil
	}

	volume := effective.Mul(decimal.NewFromInt(duration))
	if decimal.NewFromInt(used).Add(volume).GreaterThan(decimal.NewFromInt(tariff.DataVolumeCap)) {
		res.Outcome = InsufficientDataVolume
		return res, nil
	}

	res.Outcome = OK
	res.Session = &model.Session{DataVolume: volume.Floor().IntPart()}
	return res, nil
}
