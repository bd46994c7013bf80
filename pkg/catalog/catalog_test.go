package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.Technologies(), 3)
	assert.Len(t, c.Terminals(), 3)
	assert.Len(t, c.Subscriptions(), 3)
	assert.Len(t, c.Services(), 4)

	t.Run("2G carries voice only", func(t *testing.T) {
		tech, err := c.Technology(Tech2G)
		require.NoError(t, err)
		assert.True(t, tech.VoiceCallSupport)
		assert.False(t, tech.DataCapable())
	})

	t.Run("4G percentages", func(t *testing.T) {
		tech, err := c.Technology(Tech4G)
		require.NoError(t, err)
		require.NotNil(t, tech.MaximumThroughput)
		assert.Equal(t, int64(300), *tech.MaximumThroughput)
		require.Len(t, tech.ThroughputPercentages, 4)
		assert.Equal(t, SignalGood, tech.ThroughputPercentages[0].SignalQuality)
		assert.True(t, tech.ThroughputPercentages[0].Value.Equal(decimal.RequireFromString("0.5")))
	})

	t.Run("terminal keeps technology order", func(t *testing.T) {
		term, err := c.Terminal("Samsung S42plus")
		require.NoError(t, err)
		assert.Equal(t, []TechnologyID{Tech2G, Tech3G, Tech4G}, term.Technologies)
		assert.True(t, c.SupportsVoice(term))
	})

	t.Run("subscription tiers", func(t *testing.T) {
		gm, err := c.Subscription("GM")
		require.NoError(t, err)
		assert.Equal(t, int64(2200), gm.BasicFee)
		assert.Equal(t, int64(100), gm.MinutesIncluded)
		assert.Equal(t, int64(6), gm.PricePerExtraMinute)
		assert.Equal(t, int64(2000), gm.DataVolumeCap)
	})

	t.Run("voice service", func(t *testing.T) {
		vc, err := c.Service("VC")
		require.NoError(t, err)
		assert.True(t, vc.IsVoice())
		assert.True(t, vc.RequiredDataRate.IsZero())
	})
}

func TestLookupErrors(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.Terminal("Nokia 3310")
	assert.True(t, errors.Is(err, ErrUnknownTerminal))

	_, err = c.Subscription("GXL")
	assert.True(t, errors.Is(err, ErrUnknownSubscription))

	_, err = c.Service("XX")
	assert.True(t, errors.Is(err, ErrUnknownService))

	_, err = c.Technology("5G")
	assert.True(t, errors.Is(err, ErrUnknownTechnology))
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    Data
		wantErr string
	}{
		{
			name: "terminal references unknown technology",
			data: Data{
				Technologies: []Technology{{ID: Tech2G, VoiceCallSupport: true}},
				Terminals:    []Terminal{{ID: "X", Technologies: []TechnologyID{Tech3G}}},
			},
			wantErr: "unknown technology",
		},
		{
			name: "percentage above one",
			data: Data{
				Technologies: []Technology{{
					ID:                Tech3G,
					MaximumThroughput: int64Ptr(20),
					ThroughputPercentages: []ThroughputPercentage{
						{SignalQuality: SignalGood, Value: decimal.RequireFromString("1.5")},
					},
				}},
			},
			wantErr: "outside [0,1]",
		},
		{
			name: "non-positive maximum throughput",
			data: Data{
				Technologies: []Technology{{ID: Tech3G, MaximumThroughput: int64Ptr(0)}},
			},
			wantErr: "must be positive",
		},
		{
			name: "negative fee",
			data: Data{
				Subscriptions: []Subscription{{ID: "GS", BasicFee: -1}},
			},
			wantErr: "non-negative",
		},
		{
			name: "duplicate service",
			data: Data{
				Services: []Service{
					{ID: "VC", Type: ServiceVoiceCall},
					{ID: "VC", Type: ServiceVoiceCall},
				},
			},
			wantErr: "duplicate service",
		},
		{
			name: "unknown service type",
			data: Data{
				Services: []Service{{ID: "TV", Type: "television"}},
			},
			wantErr: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	techs := []TechnologyID{Tech2G}
	c, err := New(Data{
		Technologies: []Technology{{ID: Tech2G, VoiceCallSupport: true}},
		Terminals:    []Terminal{{ID: "T", Technologies: techs}},
	})
	require.NoError(t, err)

	techs[0] = Tech4G
	term, err := c.Terminal("T")
	require.NoError(t, err)
	assert.Equal(t, Tech2G, term.Technologies[0])
}

func TestParseSignalQuality(t *testing.T) {
	tests := []struct {
		in   string
		want SignalQuality
	}{
		{"good", SignalGood},
		{"G", SignalGood},
		{"medium", SignalMedium},
		{"l", SignalLow},
		{"n/a", SignalNotApplicable},
		{"N", SignalNotApplicable},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSignalQuality(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSignalQuality("excellent")
	assert.Error(t, err)
}

func TestParseRejectsBadDecimal(t *testing.T) {
	_, err := Parse([]byte(`
technologies:
  - name: 3G
    maximum_throughput: 20
    throughput_percentages:
      - {signal_quality: good, value: "half"}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid percentage")
}

func TestStoreReplace(t *testing.T) {
	first, err := Default()
	require.NoError(t, err)
	store := NewStore(first)

	held := store.Current()
	second, err := New(Data{})
	require.NoError(t, err)
	store.Replace(second)

	assert.Same(t, second, store.Current())
	_, err = held.Terminal("PhairPhone")
	assert.NoError(t, err, "a snapshot taken before a reload stays usable")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, defaultCatalog, 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, c.Terminals(), 3)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
