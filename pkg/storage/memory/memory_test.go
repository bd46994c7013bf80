package memory

import (
	"context"
	"testing"

	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/storage"
	"github.com/platinummonkey/matsecom/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	sub := storagetest.NewSubscriber("262010000000001")
	require.NoError(t, s.CreateSubscriber(ctx, sub))
	sub.Forename = "changed"

	got, err := s.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Erika", got.Forename)

	got.Surname = "changed"
	again, err := s.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mustermann", again.Surname)
}

func TestCreateSessionOutsideScope(t *testing.T) {
	s := New()
	ctx := context.Background()

	sub := storagetest.NewSubscriber("262010000000001")
	require.NoError(t, s.CreateSubscriber(ctx, sub))

	err := s.Atomically(ctx, sub.ID, func(tx storage.Tx) error {
		return tx.CreateSession(ctx, &model.Session{SubscriberID: sub.ID + 1})
	})
	assert.Error(t, err)
}
