// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) storage.Store

var errAbort = errors.New("abort")

// NewSubscriber builds a subscriber with the given IMSI on the GreenMobil S tier.
func NewSubscriber(imsi string) *model.Subscriber {
	return &model.Subscriber{
		Forename:     "Erika",
		Surname:      "Mustermann",
		IMSI:         imsi,
		Terminal:     "PhairPhone",
		Subscription: "GS",
	}
}

// Run exercises newStore against the storage.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("SubscriberCRUD", func(t *testing.T) { testSubscriberCRUD(t, newStore(t)) })
	t.Run("DuplicateIMSI", func(t *testing.T) { testDuplicateIMSI(t, newStore(t)) })
	t.Run("SessionsAndFilters", func(t *testing.T) { testSessionsAndFilters(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("InvoiceClaim", func(t *testing.T) { testInvoiceClaim(t, newStore(t)) })
	t.Run("MarkPaidTwice", func(t *testing.T) { testMarkPaidTwice(t, newStore(t)) })
	t.Run("UnknownSubscriber", func(t *testing.T) { testUnknownSubscriber(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("SerializedPerSubscriber", func(t *testing.T) { testSerialized(t, newStore(t)) })
}

func createSubscriber(t *testing.T, s storage.Store, imsi string) *model.Subscriber {
	t.Helper()
	sub := NewSubscriber(imsi)
	require.NoError(t, s.CreateSubscriber(context.Background(), sub))
	require.NotZero(t, sub.ID)
	return sub
}

func addSession(t *testing.T, s storage.Store, subscriberID int64, volume, seconds int64) *model.Session {
	t.Helper()
	sess := &model.Session{
		SubscriberID: subscriberID,
		Service:      "BN",
		Timestamp:    time.Now().UTC().Truncate(time.Second),
		Duration:     1,
		DataVolume:   volume,
		CallSeconds:  seconds,
	}
	err := s.Atomically(context.Background(), subscriberID, func(tx storage.Tx) error {
		return tx.CreateSession(context.Background(), sess)
	})
	require.NoError(t, err)
	require.NotZero(t, sess.ID)
	return sess
}

func testSubscriberCRUD(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createSubscriber(t, s, "262010000000001")
	b := createSubscriber(t, s, "262020000000002")

	got, err := s.GetSubscriber(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.IMSI, got.IMSI)
	assert.Equal(t, a.Terminal, got.Terminal)
	assert.Equal(t, a.Subscription, got.Subscription)
	assert.False(t, got.CreatedAt.IsZero())

	got, err = s.GetSubscriberByIMSI(ctx, b.IMSI)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	all, err := s.ListSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)

	_, err = s.GetSubscriber(ctx, a.ID+b.ID+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetSubscriberByIMSI(ctx, "262090000000000")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDuplicateIMSI(t *testing.T, s storage.Store) {
	createSubscriber(t, s, "262010000000001")
	err := s.CreateSubscriber(context.Background(), NewSubscriber("262010000000001"))
	assert.ErrorIs(t, err, storage.ErrDuplicateIMSI)
}

func testSessionsAndFilters(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createSubscriber(t, s, "262010000000001")
	b := createSubscriber(t, s, "262010000000002")

	addSession(t, s, a.ID, 10, 0)
	addSession(t, s, a.ID, 0, 61)
	addSession(t, s, b.ID, 5, 0)

	all, err := s.ListSessions(ctx, model.SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.ListSessions(ctx, model.SessionFilter{SubscriberID: a.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(10), mine[0].DataVolume)
	assert.Equal(t, int64(61), mine[1].CallSeconds)
	assert.False(t, mine[0].Paid)

	paid, err := s.ListSessions(ctx, model.SessionFilter{SubscriberID: a.ID, Paid: model.Bool(true)})
	require.NoError(t, err)
	assert.Empty(t, paid)
}

func testRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createSubscriber(t, s, "262010000000001")
	kept := addSession(t, s, a.ID, 10, 0)

	err := s.Atomically(ctx, a.ID, func(tx storage.Tx) error {
		if err := tx.CreateSession(ctx, &model.Session{SubscriberID: a.ID, Service: "AD", Duration: 1, DataVolume: 99}); err != nil {
			return err
		}
		if err := tx.MarkPaid(ctx, []int64{kept.ID}); err != nil {
			return err
		}
		if err := tx.CreateInvoice(ctx, &model.Invoice{SubscriberID: a.ID, Charges: 800}); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	sessions, err := s.ListSessions(ctx, model.SessionFilter{SubscriberID: a.ID})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Paid)

	invoices, err := s.ListInvoices(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func testInvoiceClaim(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createSubscriber(t, s, "262010000000001")
	s1 := addSession(t, s, a.ID, 10, 0)
	s2 := addSession(t, s, a.ID, 0, 30)

	inv := &model.Invoice{SubscriberID: a.ID, Timestamp: time.Now().UTC().Truncate(time.Second), DataVolume: 10, CallMinutes: 1, Charges: 808, SessionCount: 2}
	err := s.Atomically(ctx, a.ID, func(tx storage.Tx) error {
		unpaid, err := tx.Sessions(ctx, model.Bool(false))
		if err != nil {
			return err
		}
		if !assert.Len(t, unpaid, 2) {
			return errAbort
		}
		if err := tx.MarkPaid(ctx, []int64{s1.ID, s2.ID}); err != nil {
			return err
		}
		after, err := tx.Sessions(ctx, model.Bool(false))
		if err != nil {
			return err
		}
		assert.Empty(t, after, "marks are visible inside the transaction")
		return tx.CreateInvoice(ctx, inv)
	})
	require.NoError(t, err)
	require.NotZero(t, inv.ID)

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(808), got.Charges)
	assert.Equal(t, int64(10), got.DataVolume)
	assert.Equal(t, int64(1), got.CallMinutes)
	assert.Equal(t, 2, got.SessionCount)

	unpaid, err := s.ListSessions(ctx, model.SessionFilter{SubscriberID: a.ID, Paid: model.Bool(false)})
	require.NoError(t, err)
	assert.Empty(t, unpaid)

	_, err = s.GetInvoice(ctx, inv.ID+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testMarkPaidTwice(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createSubscriber(t, s, "262010000000001")
	sess := addSession(t, s, a.ID, 10, 0)

	mark := func() error {
		return s.Atomically(ctx, a.ID, func(tx storage.Tx) error {
			return tx.MarkPaid(ctx, []int64{sess.ID})
		})
	}
	require.NoError(t, mark())
	assert.Error(t, mark(), "a paid session can not be claimed again")
}

func testUnknownSubscriber(t *testing.T, s storage.Store) {
	called := false
	err := s.Atomically(context.Background(), 4242, func(tx storage.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.False(t, called)
}

func testDeleteCascades(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createSubscriber(t, s, "262010000000001")
	b := createSubscriber(t, s, "262010000000002")
	addSession(t, s, a.ID, 10, 0)
	addSession(t, s, b.ID, 10, 0)
	require.NoError(t, s.Atomically(ctx, a.ID, func(tx storage.Tx) error {
		return tx.CreateInvoice(ctx, &model.Invoice{SubscriberID: a.ID, Charges: 800})
	}))

	require.NoError(t, s.DeleteSubscriber(ctx, a.ID))

	_, err := s.GetSubscriber(ctx, a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	sessions, err := s.ListSessions(ctx, model.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, b.ID, sessions[0].SubscriberID)
	invoices, err := s.ListInvoices(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, invoices)

	assert.ErrorIs(t, s.DeleteSubscriber(ctx, a.ID), storage.ErrNotFound)

	// The IMSI is free again.
	createSubscriber(t, s, "262010000000001")
}

func testSerialized(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createSubscriber(t, s, "262010000000001")

	// Every worker reads the count of sessions and only inserts when it is below
	// the limit. Without per-subscriber exclusion more than limit rows would land.
	const workers, limit = 8, 3
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Atomically(ctx, a.ID, func(tx storage.Tx) error {
				existing, err := tx.Sessions(ctx, nil)
				if err != nil {
					return err
				}
				if len(existing) >= limit {
					return nil
				}
				time.Sleep(5 * time.Millisecond)
				return tx.CreateSession(ctx, &model.Session{SubscriberID: a.ID, Service: "BN", Duration: 1, DataVolume: 1})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sessions, err := s.ListSessions(ctx, model.SessionFilter{SubscriberID: a.ID})
	require.NoError(t, err)
	assert.Len(t, sessions, limit)
}
