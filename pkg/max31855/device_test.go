package max31855

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"tinygo.org/x/drivers"
)

type csPin struct {
	levels []bool
}

func (p *csPin) High() { p.levels = append(p.levels, true) }
func (p *csPin) Low()  { p.levels = append(p.levels, false) }

func frame(raw uint32) []byte {
	return []byte{byte(raw >> 24), byte(raw >> 16), byte(raw >> 8), byte(raw)}
}

func TestDeviceRead(t *testing.T) {
	bus := &conntest.Playback{
		Ops: []conntest.IO{
			{W: []byte{0, 0, 0, 0}, R: frame(0x06401900)},
			{W: []byte{0, 0, 0, 0}, R: frame(0x00000001)},
		},
	}
	cs := &csPin{}
	dev := New(bus, cs)
	dev.Configure()

	r, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, Reading{Probe: 100000, Reference: 25000}, r)

	r, err = dev.Read()
	require.NoError(t, err)
	assert.Equal(t, Reading{Fault: OpenCircuit}, r)

	assert.Equal(t, []bool{true, false, true, false, true}, cs.levels)
	require.NoError(t, bus.Close())
}

func TestDeviceReadBusError(t *testing.T) {
	bus := &conntest.Playback{DontPanic: true}
	dev := New(bus, nil)

	r, err := dev.Read()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBus))
	assert.Equal(t, BusFault, r.Fault)
}

func TestDeviceUpdate(t *testing.T) {
	bus := &conntest.Playback{
		Ops: []conntest.IO{
			{W: []byte{0, 0, 0, 0}, R: frame(0x06401900)},
			{W: []byte{0, 0, 0, 0}, R: frame(0x00000002)},
		},
	}
	dev := New(bus, nil)

	require.NoError(t, dev.Update(drivers.Humidity))
	assert.Equal(t, 0, bus.Count)

	require.NoError(t, dev.Update(drivers.Temperature))
	assert.Equal(t, int32(100000), dev.Temperature())
	assert.Equal(t, int32(25000), dev.ReferenceTemperature())

	err := dev.Update(drivers.Temperature | drivers.Humidity)
	assert.True(t, errors.Is(err, ErrFault))
	assert.Equal(t, ShortToGround, dev.Last().Fault)
	assert.Zero(t, dev.Temperature())
}
