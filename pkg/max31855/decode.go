// Package max31855 decodes frames produced by the MAX31855 cold-junction
// compensated thermocouple-to-digital converter and reads them over SPI.
package max31855

import (
	"strings"

	"periph.io/x/conn/v3/physic"
)

// Fault is a set of fault flags attached to a reading.
type Fault uint8

const (
	// OpenCircuit means no thermocouple is attached.
	OpenCircuit Fault = 1 << iota
	// ShortToGround means the thermocouple is shorted to GND.
	ShortToGround
	// ShortToSupply means the thermocouple is shorted to VCC.
	ShortToSupply
	// BusFault is never produced by Decode. Callers use it to mark a
	// channel whose frame could not be read at all.
	BusFault
)

const frameFaults = OpenCircuit | ShortToGround | ShortToSupply

// Has reports whether all flags in f2 are set.
func (f Fault) Has(f2 Fault) bool {
	return f&f2 == f2
}

func (f Fault) String() string {
	if f == 0 {
		return "ok"
	}
	var parts []string
	if f.Has(OpenCircuit) {
		parts = append(parts, "open")
	}
	if f.Has(ShortToGround) {
		parts = append(parts, "gnd")
	}
	if f.Has(ShortToSupply) {
		parts = append(parts, "vcc")
	}
	if f.Has(BusFault) {
		parts = append(parts, "bus")
	}
	return strings.Join(parts, "|")
}

// Reading is either a valid measurement (Fault == 0) or a fault report.
// Temperatures are in milli-degrees Celsius and are zero for faults.
type Reading struct {
	Fault     Fault
	Probe     int32
	Reference int32
}

// Valid reports whether r carries temperatures.
func (r Reading) Valid() bool {
	return r.Fault == 0
}

// ProbeTemperature returns the hot junction temperature.
func (r Reading) ProbeTemperature() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(r.Probe)*physic.MilliCelsius
}

// ReferenceTemperature returns the cold junction (die) temperature.
func (r Reading) ReferenceTemperature() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(r.Reference)*physic.MilliCelsius
}

// Frame layout.
const (
	refShift   = 4
	refBits    = 12
	summaryBit = 1 << 16
	probeShift = 18
	probeBits  = 14

	probeMilliPerLSB = 250 // 0.25 C
)

// Decode interprets a raw 32-bit frame (MSB first as clocked out of the chip).
func Decode(raw uint32) Reading {
	if f := Fault(raw) & frameFaults; f != 0 {
		return Reading{Fault: f}
	}

	probe := signExtend(raw>>probeShift, probeBits)
	ref := signExtend(raw>>refShift, refBits)

	return Reading{
		Probe: probe * probeMilliPerLSB,
		// 1/16 C per LSB
		Reference: ref * 125 / 2,
	}
}

// Encode builds the frame the chip would produce for r. Temperatures are
// rounded toward zero to the chip resolution; BusFault has no representation.
func Encode(r Reading) uint32 {
	if f := r.Fault & frameFaults; f != 0 {
		return uint32(f) | summaryBit
	}
	probe := uint32(r.Probe/probeMilliPerLSB) & (1<<probeBits - 1)
	ref := uint32(r.Reference*2/125) & (1<<refBits - 1)
	return probe<<probeShift | ref<<refShift
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
