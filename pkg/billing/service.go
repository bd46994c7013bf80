package billing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/lock"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/storage"
)

var tracer = otel.Tracer("github.com/platinummonkey/matsecom/pkg/billing")

// Archiver keeps a copy of every invoice outside the store.
type Archiver interface {
	PutInvoice(ctx context.Context, inv *model.Invoice) error
}

// Generator turns a subscriber's unpaid sessions into an invoice.
type Generator struct {
	store   storage.Store
	catalog catalog.Provider
	locker  lock.Locker
	archive Archiver
	metrics *observability.Metrics
	logger  *observability.Logger
	now     func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithLocker adds a lock held around each invoice run, for deployments where
// several processes bill the same store.
func WithLocker(l lock.Locker) Option {
	return func(g *Generator) { g.locker = l }
}

// WithArchive writes a copy of each committed invoice to a.
func WithArchive(a Archiver) Option {
	return func(g *Generator) { g.archive = a }
}

// WithMetrics records invoice runs in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithClock replaces time.Now for invoice timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a new invoice generator
func NewGenerator(store storage.Store, provider catalog.Provider, logger *observability.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	g := &Generator{
		store:   store,
		catalog: provider,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Invoice bills every unpaid session of the subscriber. The sessions are marked
// paid and the invoice is created in one unit of work, so a failure leaves every
// paid flag as it was. With no unpaid sessions the invoice carries only the
// basic fee.
func (g *Generator) Invoice(ctx context.Context, subscriberID int64) (inv *model.Invoice, err error) {
	ctx, span := tracer.Start(ctx, "billing.Invoice",
		trace.WithAttributes(attribute.Int64("subscriber.id", subscriberID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invoice failed")
			g.metrics.ObserveInvoice(0, 0, err)
		}
		span.End()
	}()

	sub, err := g.store.GetSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber %d: %w", subscriberID, err)
	}
	tariff, err := g.catalog.Current().Subscription(sub.Subscription)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subscription of subscriber %d: %w", subscriberID, err)
	}

	if g.locker != nil {
		start := time.Now()
		unlock, err := g.locker.Lock(ctx, lock.SubscriberKey(subscriberID))
		if err != nil {
			return nil, fmt.Errorf("failed to lock subscriber %d: %w", subscriberID, err)
		}
		defer unlock()
		g.metrics.ObserveLockWait("invoice", time.Since(start))
	}

	var usage Usage
	err = g.store.Atomically(ctx, subscriberID, func(tx storage.Tx) error {
		unpaid, err := tx.Sessions(ctx, model.Bool(false))
		if err != nil {
			return fmt.Errorf("failed to list unpaid sessions: %w", err)
		}

		if len(unpaid) > 0 {
			ids := make([]int64, len(unpaid))
			for i, s := range unpaid {
				ids[i] = s.ID
			}
			if err := tx.MarkPaid(ctx, ids); err != nil {
				return fmt.Errorf("failed to mark sessions paid: %w", err)
			}
		}

		usage = Aggregate(unpaid, tariff)
		if len(unpaid) == 0 {
			// An empty claim bills the basic fee only.
			usage.Charges = tariff.BasicFee
		}
		inv = &model.Invoice{
			SubscriberID: subscriberID,
			Timestamp:    g.now().UTC(),
			DataVolume:   usage.DataVolume,
			CallMinutes:  usage.BilledMinutes,
			Charges:      usage.Charges,
			SessionCount: usage.Sessions,
		}
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("invoice.id", inv.ID),
		attribute.Int("invoice.sessions", usage.Sessions),
		attribute.Int64("invoice.charges", inv.Charges),
	)
	g.metrics.ObserveInvoice(inv.Charges, usage.Sessions, nil)

	log := g.logger.WithFields(map[string]interface{}{
		"subscriber_id": subscriberID,
		"invoice_id":    inv.ID,
		"sessions":      usage.Sessions,
		"charges":       inv.Charges,
	})
	log.Info("Invoice created")

	if g.archive != nil {
		if aerr := g.archive.PutInvoice(ctx, inv); aerr != nil {
			g.metrics.ObserveArchiveError()
			log.WithError(aerr).Warn("Failed to archive invoice")
		}
	}

	return inv, nil
}
