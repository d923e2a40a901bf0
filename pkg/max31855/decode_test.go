package max31855

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/physic"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  uint32
		want Reading
	}{
		{"zero", 0, Reading{}},
		{"open circuit", 0x00000001, Reading{Fault: OpenCircuit}},
		{"short to ground", 0x00000002, Reading{Fault: ShortToGround}},
		{"short to supply", 0x00000004, Reading{Fault: ShortToSupply}},
		{"all faults", 0x00000007, Reading{Fault: OpenCircuit | ShortToGround | ShortToSupply}},
		{"fault hides temperatures", 0x06401905, Reading{Fault: OpenCircuit | ShortToSupply}},
		{"summary bit alone is valid", 0x00010000, Reading{}},
		{"bit 3 ignored", 0x00000008, Reading{}},
		{"probe 100C", 0x06400000, Reading{Probe: 100000}},
		{"probe minus one lsb", 0xFFFC0000, Reading{Probe: -250}},
		{"probe minus 250C", 0xF0600000, Reading{Probe: -250000}},
		{"probe max", 0x7FFC0000, Reading{Probe: 2047750}},
		{"reference 25C", 0x00001900, Reading{Reference: 25000}},
		{"reference minus one lsb", 0x0000FFF0, Reading{Reference: -62}},
		{"reference minus 55C", 0x0000C900, Reading{Reference: -55000}},
		{"both", 0x06401900, Reading{Probe: 100000, Reference: 25000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Fault == 0, got.Valid())
		})
	}
}

func TestDecodeFaultFlagsMatchBits(t *testing.T) {
	for raw := uint32(0); raw < 8; raw++ {
		got := Decode(raw | 0xABCD0000)
		assert.Equal(t, Fault(raw), got.Fault, "raw %#x", raw)
		if raw != 0 {
			assert.Zero(t, got.Probe)
			assert.Zero(t, got.Reference)
		}
	}
}

func TestEncode(t *testing.T) {
	assert.Equal(t, uint32(0x06401900), Encode(Reading{Probe: 100000, Reference: 25000}))
	assert.Equal(t, uint32(0xFFFC0000), Encode(Reading{Probe: -250}))
	assert.Equal(t, uint32(0x00010001), Encode(Reading{Fault: OpenCircuit, Probe: 1000}))
	assert.Equal(t, uint32(0), Encode(Reading{Fault: BusFault}))

	// truncated to chip resolution
	r := Decode(Encode(Reading{Probe: 23370, Reference: 21030}))
	assert.Equal(t, int32(23250), r.Probe)
	assert.Equal(t, int32(21000), r.Reference)
}

func TestFaultString(t *testing.T) {
	assert.Equal(t, "ok", Fault(0).String())
	assert.Equal(t, "open", OpenCircuit.String())
	assert.Equal(t, "gnd|vcc", (ShortToGround | ShortToSupply).String())
	assert.Equal(t, "bus", BusFault.String())
}

func TestReadingTemperatures(t *testing.T) {
	r := Reading{Probe: 100000, Reference: -500}
	assert.Equal(t, physic.ZeroCelsius+100*physic.Celsius, r.ProbeTemperature())
	assert.Equal(t, physic.ZeroCelsius-500*physic.MilliCelsius, r.ReferenceTemperature())
}
