package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/thermomon/pkg/config"
	"github.com/itohio/thermomon/pkg/max31855"
)

func newTestMock(cfg config.MockConfig) (*Mock, *time.Time) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMock(&cfg)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMockWarmsTowardTarget(t *testing.T) {
	m, now := newTestMock(config.MockConfig{Ambient: 20, Target: 40, TimeConstant: 10 * time.Second})

	raw, err := m.ReadRaw("0")
	require.NoError(t, err)
	r := max31855.Decode(raw)
	require.True(t, r.Valid())
	assert.Equal(t, int32(20000), r.Probe)
	assert.Equal(t, int32(20000), r.Reference)

	*now = now.Add(10 * time.Second)
	raw, err = m.ReadRaw("0")
	require.NoError(t, err)
	r = max31855.Decode(raw)
	// one time constant covers ~63% of the step
	assert.InDelta(t, 32640, r.Probe, 250)

	*now = now.Add(10 * time.Minute)
	raw, err = m.ReadRaw("0")
	require.NoError(t, err)
	assert.InDelta(t, 40000, max31855.Decode(raw).Probe, 250)
	assert.InDelta(t, 40.0, m.Temperature("0"), 0.01)
}

func TestMockFaults(t *testing.T) {
	m, _ := newTestMock(config.MockConfig{Ambient: 20, Target: 20})

	m.SetFault("1", max31855.ShortToSupply)
	assert.Equal(t, max31855.ShortToSupply, m.Fault("1"))
	raw, err := m.ReadRaw("1")
	require.NoError(t, err)
	assert.Equal(t, max31855.ShortToSupply, max31855.Decode(raw).Fault)

	m.SetFault("1", max31855.BusFault)
	_, err = m.ReadRaw("1")
	assert.ErrorIs(t, err, ErrBus)

	m.SetFault("1", 0)
	raw, err = m.ReadRaw("1")
	require.NoError(t, err)
	assert.True(t, max31855.Decode(raw).Valid())

	// other probes are unaffected
	raw, err = m.ReadRaw("0")
	require.NoError(t, err)
	assert.True(t, max31855.Decode(raw).Valid())
}

func TestMockSetTarget(t *testing.T) {
	m, now := newTestMock(config.MockConfig{Ambient: 20, Target: 20})
	m.SetTarget("0", -10)
	*now = now.Add(time.Second)
	raw, err := m.ReadRaw("0")
	require.NoError(t, err)
	assert.Equal(t, int32(-10000), max31855.Decode(raw).Probe)
}

func TestNewMockDefaults(t *testing.T) {
	m := NewMock(nil)
	raw, err := m.ReadRaw("0")
	require.NoError(t, err)
	assert.True(t, max31855.Decode(raw).Valid())
}
