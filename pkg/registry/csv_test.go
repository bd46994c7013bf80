package registry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "forename,surname,imsi,terminal_type,subscription_type\n"

func TestService_Import(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newTestService(t, store)
	require.NoError(t, svc.Create(ctx, validSubscriber("262011111111111")))

	input := header +
		"Anna,Schmidt,262021234567890,PhairPhone,GS\n" +
		"Max,Mustermann,262011111111111,Samsung S42plus,GM\n" +
		"Lena,Meyer,262031234567890,Pear APhone 4S,GL\n" +
		"Lena,Meyer,262031234567890,Pear APhone 4S,GL\n"

	result, err := svc.Import(ctx, strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	assert.Equal(t, "262021234567890", result.Created[0].IMSI)
	assert.Equal(t, catalog.SubscriptionID("GL"), result.Created[1].Subscription)
	assert.Equal(t, []string{"262011111111111", "262031234567890"}, result.Skipped)

	subs, err := store.ListSubscribers(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 3)
}

func TestService_ImportErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   string
		wantRow int
		wantIs  error
	}{
		{
			name:   "empty input",
			input:  "",
			wantIs: ErrInvalidHeader,
		},
		{
			name:   "wrong header",
			input:  "name,surname,imsi,terminal_type,subscription_type\n",
			wantIs: ErrInvalidHeader,
		},
		{
			name:   "reordered header",
			input:  "surname,forename,imsi,terminal_type,subscription_type\n",
			wantIs: ErrInvalidHeader,
		},
		{
			name:    "unknown terminal",
			input:   header + "Anna,Schmidt,262021234567890,PhairPhone,GS\nBen,Braun,262041234567890,Nokia 3310,GS\n",
			wantRow: 2,
			wantIs:  catalog.ErrUnknownTerminal,
		},
		{
			name:    "unknown subscription",
			input:   header + "Ben,Braun,262041234567890,PhairPhone,GXL\n",
			wantRow: 1,
			wantIs:  catalog.ErrUnknownSubscription,
		},
		{
			name:    "missing field",
			input:   header + "Ben,Braun,262041234567890,PhairPhone\n",
			wantRow: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			svc := newTestService(t, store)

			result, err := svc.Import(ctx, strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, result)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantRow > 0 {
				var ie *ImportError
				require.True(t, errors.As(err, &ie))
				assert.Equal(t, tt.wantRow, ie.Row)
			}

			subs, err := store.ListSubscribers(ctx)
			require.NoError(t, err)
			assert.Empty(t, subs)
		})
	}
}

func TestService_ImportInvalidIMSI(t *testing.T) {
	svc := newTestService(t, memory.New())
	_, err := svc.Import(context.Background(), strings.NewReader(header+"Ben,Braun,999,PhairPhone,GS\n"))

	var ie *ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 1, ie.Row)
	var imsiErr *InvalidIMSIError
	assert.True(t, errors.As(err, &imsiErr))
}

func TestService_Export(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	require.NoError(t, svc.Create(ctx, validSubscriber("262011234567890")))
	second := validSubscriber("262021234567890")
	second.Surname = "Müller, Jr."
	second.Terminal = "PhairPhone"
	second.Subscription = "GS"
	require.NoError(t, svc.Create(ctx, second))

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))
	assert.Equal(t, header+
		"Max,Mustermann,262011234567890,Samsung S42plus,GM\n"+
		"Max,\"Müller, Jr.\",262021234567890,PhairPhone,GS\n", buf.String())

	target := newTestService(t, memory.New())
	result, err := target.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.Equal(t, "Müller, Jr.", result.Created[1].Surname)
}
