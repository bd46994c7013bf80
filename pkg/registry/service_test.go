package registry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/storage"
	"github.com/platinummonkey/matsecom/pkg/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore is a mock implementation of storage.SubscriberStore
type mockStore struct {
	createFunc    func(ctx context.Context, sub *model.Subscriber) error
	getFunc       func(ctx context.Context, id int64) (*model.Subscriber, error)
	getByIMSIFunc func(ctx context.Context, imsi string) (*model.Subscriber, error)
	listFunc      func(ctx context.Context) ([]*model.Subscriber, error)
	deleteFunc    func(ctx context.Context, id int64) error
	getCalls      int
}

func (m *mockStore) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, sub)
	}
	return nil
}

func (m *mockStore) GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error) {
	m.getCalls++
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

func (m *mockStore) GetSubscriberByIMSI(ctx context.Context, imsi string) (*model.Subscriber, error) {
	if m.getByIMSIFunc != nil {
		return m.getByIMSIFunc(ctx, imsi)
	}
	return nil, storage.ErrNotFound
}

func (m *mockStore) ListSubscribers(ctx context.Context) ([]*model.Subscriber, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockStore) DeleteSubscriber(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func newTestService(t *testing.T, store storage.SubscriberStore, opts ...Option) *Service {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return NewService(store, catalog.NewStore(c), testLogger(), opts...)
}

func validSubscriber(imsi string) *model.Subscriber {
	return &model.Subscriber{
		Forename:     "Max",
		Surname:      "Mustermann",
		IMSI:         imsi,
		Terminal:     "Samsung S42plus",
		Subscription: "GM",
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())

	sub := validSubscriber("262011234567890")
	sub.Forename = "  Max "
	require.NoError(t, svc.Create(ctx, sub))
	assert.NotZero(t, sub.ID)
	assert.Equal(t, "Max", sub.Forename)
	assert.False(t, sub.CreatedAt.IsZero())

	got, err := svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.IMSI, got.IMSI)

	byIMSI, err := svc.GetByIMSI(ctx, sub.IMSI)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byIMSI.ID)
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*model.Subscriber)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "invalid imsi",
			mutate: func(s *model.Subscriber) { s.IMSI = "123" },
			check: func(t *testing.T, err error) {
				var ie *InvalidIMSIError
				assert.True(t, errors.As(err, &ie))
			},
		},
		{
			name:   "empty forename",
			mutate: func(s *model.Subscriber) { s.Forename = " " },
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, "forename", ve.Field)
			},
		},
		{
			name:   "surname too long",
			mutate: func(s *model.Subscriber) { s.Surname = strings.Repeat("x", MaxNameLength+1) },
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, "surname", ve.Field)
			},
		},
		{
			name:   "unknown terminal",
			mutate: func(s *model.Subscriber) { s.Terminal = "Nokia 3310" },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, catalog.ErrUnknownTerminal)
			},
		},
		{
			name:   "unknown subscription",
			mutate: func(s *model.Subscriber) { s.Subscription = "GXL" },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, catalog.ErrUnknownSubscription)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{createFunc: func(context.Context, *model.Subscriber) error {
				t.Fatal("invalid subscriber must not reach the store")
				return nil
			}}
			svc := newTestService(t, store)
			sub := validSubscriber("262011234567890")
			tt.mutate(sub)
			err := svc.Create(ctx, sub)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestService_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())

	require.NoError(t, svc.Create(ctx, validSubscriber("262011234567890")))
	err := svc.Create(ctx, validSubscriber("262011234567890"))
	assert.ErrorIs(t, err, ErrDuplicateIMSI)
}

func TestService_StoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	store := &mockStore{
		createFunc: func(context.Context, *model.Subscriber) error { return boom },
		getFunc:    func(context.Context, int64) (*model.Subscriber, error) { return nil, boom },
		listFunc:   func(context.Context) ([]*model.Subscriber, error) { return nil, boom },
		deleteFunc: func(context.Context, int64) error { return boom },
	}
	svc := newTestService(t, store)

	err := svc.Create(ctx, validSubscriber("262011234567890"))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicateIMSI)

	_, err = svc.Get(ctx, 1)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrSubscriberNotFound)

	_, err = svc.List(ctx)
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, svc.Delete(ctx, 1), boom)
}

func TestService_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())

	_, err := svc.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
	_, err = svc.GetByIMSI(ctx, "262011234567890")
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 42), ErrSubscriberNotFound)
}

func TestService_Cache(t *testing.T) {
	ctx := context.Background()
	sub := validSubscriber("262011234567890")
	sub.ID = 7
	store := &mockStore{getFunc: func(context.Context, int64) (*model.Subscriber, error) {
		out := *sub
		return &out, nil
	}}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc := newTestService(t, store, WithCache(16, time.Minute), WithMetrics(metrics))

	for i := 0; i < 3; i++ {
		got, err := svc.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, sub.IMSI, got.IMSI)
	}
	assert.Equal(t, 1, store.getCalls)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("subscriber")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("subscriber")))

	got, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	got.Forename = "changed"
	again, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Max", again.Forename)

	require.NoError(t, svc.Delete(ctx, 7))
	assert.Zero(t, svc.cache.len())
	_, err = svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, store.getCalls)
}

func TestService_ListUpdatesGauge(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc := newTestService(t, memory.New(), WithMetrics(metrics))

	require.NoError(t, svc.Create(ctx, validSubscriber("262011234567890")))
	require.NoError(t, svc.Create(ctx, validSubscriber("262021234567890")))

	subs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SubscribersTotal))
}
