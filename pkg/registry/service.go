package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/storage"
)

// MaxNameLength bounds forename and surname.
const MaxNameLength = 100

// Service manages registered subscribers on top of a store.
type Service struct {
	store   storage.SubscriberStore
	catalog catalog.Provider
	cache   *subscriberCache
	metrics *observability.Metrics
	logger  *observability.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache keeps up to size subscribers for ttl after they were read.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) { s.cache = newSubscriberCache(size, ttl, nil) }
}

// WithMetrics records cache lookups and the subscriber count in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a registry service.
func NewService(store storage.SubscriberStore, provider catalog.Provider, logger *observability.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Service{
		store:   store,
		catalog: provider,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache != nil {
		s.cache.metrics = s.metrics
	}
	return s
}

// Validate checks the subscriber fields against the numbering rule and the
// current catalog.
func (s *Service) Validate(sub *model.Subscriber) error {
	if err := validateName("forename", sub.Forename); err != nil {
		return err
	}
	if err := validateName("surname", sub.Surname); err != nil {
		return err
	}
	if err := ValidateIMSI(sub.IMSI); err != nil {
		return err
	}
	cat := s.catalog.Current()
	if _, err := cat.Terminal(sub.Terminal); err != nil {
		return err
	}
	if _, err := cat.Subscription(sub.Subscription); err != nil {
		return err
	}
	return nil
}

func validateName(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	if len([]rune(v)) > MaxNameLength {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	return nil
}

// Create validates and registers a subscriber. The IMSI must not be registered yet.
func (s *Service) Create(ctx context.Context, sub *model.Subscriber) error {
	sub.Forename = strings.TrimSpace(sub.Forename)
	sub.Surname = strings.TrimSpace(sub.Surname)
	sub.IMSI = strings.TrimSpace(sub.IMSI)
	if err := s.Validate(sub); err != nil {
		return err
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now().UTC()
	}

	if err := s.store.CreateSubscriber(ctx, sub); err != nil {
		if errors.Is(err, storage.ErrDuplicateIMSI) {
			return fmt.Errorf("%w: %s", ErrDuplicateIMSI, sub.IMSI)
		}
		return fmt.Errorf("failed to create subscriber: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"subscriber_id": sub.ID,
		"terminal":      sub.Terminal,
		"subscription":  sub.Subscription,
	}).Info("Subscriber registered")
	return nil
}

// Get returns the subscriber with the given id.
func (s *Service) Get(ctx context.Context, id int64) (*model.Subscriber, error) {
	if s.cache != nil {
		if sub, ok := s.cache.get(id); ok {
			return sub, nil
		}
	}

	sub, err := s.store.GetSubscriber(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrSubscriberNotFound, id)
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	if s.cache != nil {
		s.cache.add(sub)
	}
	return sub, nil
}

// GetByIMSI returns the subscriber registered under imsi.
func (s *Service) GetByIMSI(ctx context.Context, imsi string) (*model.Subscriber, error) {
	sub, err := s.store.GetSubscriberByIMSI(ctx, imsi)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: imsi %s", ErrSubscriberNotFound, imsi)
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return sub, nil
}

// List returns every subscriber ordered by id.
func (s *Service) List(ctx context.Context) ([]*model.Subscriber, error) {
	subs, err := s.store.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	s.metrics.SetSubscribers(len(subs))
	return subs, nil
}

// Delete removes a subscriber with all of its sessions and invoices.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if s.cache != nil {
		s.cache.remove(id)
	}
	if err := s.store.DeleteSubscriber(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrSubscriberNotFound, id)
		}
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	s.logger.WithField("subscriber_id", id).Info("Subscriber deleted")
	return nil
}
