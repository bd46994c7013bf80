package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/matsecom/pkg/lock"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/storage"
)

// CycleLockKey is the lock that keeps billing cycles from overlapping.
const CycleLockKey = "billing-cycle"

// CycleResult summarizes one billing cycle.
type CycleResult struct {
	RunID    string           `json:"run_id"`
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
	Skipped  bool             `json:"skipped"`
	Invoices []*model.Invoice `json:"invoices"`
	Failures map[int64]string `json:"failures,omitempty"`
}

// Cycle invoices every registered subscriber.
type Cycle struct {
	generator   *Generator
	subscribers storage.SubscriberStore
	leader      lock.Locker
	concurrency int
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewCycle creates a billing cycle. leader may be nil when only one process runs
// cycles. concurrency below one is treated as one.
func NewCycle(gen *Generator, subscribers storage.SubscriberStore, leader lock.Locker, concurrency int, logger *observability.Logger, metrics *observability.Metrics) *Cycle {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Cycle{
		generator:   gen,
		subscribers: subscribers,
		leader:      leader,
		concurrency: concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run invoices all subscribers with bounded concurrency. A failing subscriber does
// not stop the others; their errors are joined into the returned error. When
// another process holds the cycle lock the run is skipped.
func (c *Cycle) Run(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{
		RunID:    uuid.New().String(),
		Started:  time.Now().UTC(),
		Failures: make(map[int64]string),
	}
	log := c.logger.WithField("run_id", result.RunID)

	// The leader lock is held, and with Redis renewed, until the run returns.
	if c.leader != nil {
		unlock, err := c.leader.TryLock(ctx, CycleLockKey)
		if errors.Is(err, lock.ErrNotAcquired) {
			log.Info("Billing cycle already running elsewhere, skipping")
			result.Skipped = true
			result.Finished = time.Now().UTC()
			c.metrics.ObserveBillingCycle("skipped", result.Finished.Sub(result.Started))
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to acquire billing cycle lock: %w", err)
		}
		defer unlock()
	}

	subs, err := c.subscribers.ListSubscribers(ctx)
	if err != nil {
		c.metrics.ObserveBillingCycle("error", time.Since(result.Started))
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	log.Infof("Billing cycle started for %d subscribers", len(subs))

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(c.concurrency)

	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			inv, err := c.invoiceOne(ctx, log, sub.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures[sub.ID] = err.Error()
				errs = append(errs, fmt.Errorf("subscriber %d: %w", sub.ID, err))
				return nil
			}
			result.Invoices = append(result.Invoices, inv)
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(result.Invoices, func(i, j int) bool {
		return result.Invoices[i].SubscriberID < result.Invoices[j].SubscriberID
	})

	result.Finished = time.Now().UTC()
	status := "success"
	if len(result.Failures) > 0 {
		status = "partial"
	}
	c.metrics.ObserveBillingCycle(status, result.Finished.Sub(result.Started))
	log.WithFields(map[string]interface{}{
		"invoices": len(result.Invoices),
		"failures": len(result.Failures),
	}).Info("Billing cycle finished")

	return result, errors.Join(errs...)
}

func (c *Cycle) invoiceOne(ctx context.Context, log *observability.Logger, subscriberID int64) (inv *model.Invoice, err error) {
	defer observability.RecoverPanic(log, "billing cycle", &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.generator.Invoice(ctx, subscriberID)
}
