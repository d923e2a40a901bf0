package max31855

import (
	"encoding/binary"
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

var (
	// ErrBus is returned when the frame could not be clocked in.
	ErrBus = errors.New("max31855: bus error")
	// ErrFault is returned by Update when the chip reports a thermocouple fault.
	ErrFault = errors.New("max31855: thermocouple fault")
)

// Conn is a full-duplex SPI connection. periph.io spi.Conn and
// tinygo drivers.SPI both satisfy it.
type Conn interface {
	Tx(w, r []byte) error
}

// Pin is a chip-select line driven by the device. It may be nil when the
// bus handles chip-select itself.
type Pin interface {
	High()
	Low()
}

// Device is a single MAX31855 on a shared bus.
type Device struct {
	bus  Conn
	cs   Pin
	w    [4]byte
	r    [4]byte
	last Reading
}

var _ drivers.Sensor = (*Device)(nil)

// New returns a device on bus selected by cs.
func New(bus Conn, cs Pin) *Device {
	return &Device{bus: bus, cs: cs}
}

// Configure deselects the chip.
func (d *Device) Configure() {
	if d.cs != nil {
		d.cs.High()
	}
}

// ReadRaw clocks in one 32-bit frame.
func (d *Device) ReadRaw() (uint32, error) {
	if d.cs != nil {
		d.cs.Low()
		defer d.cs.High()
	}
	if err := d.bus.Tx(d.w[:], d.r[:]); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBus, err)
	}
	return binary.BigEndian.Uint32(d.r[:]), nil
}

// Read clocks in and decodes one frame.
func (d *Device) Read() (Reading, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return Reading{Fault: BusFault}, err
	}
	return Decode(raw), nil
}

// Update refreshes the cached reading. Only drivers.Temperature is supported.
func (d *Device) Update(which drivers.Measurement) error {
	if which&drivers.Temperature == 0 {
		return nil
	}
	r, err := d.Read()
	d.last = r
	if err != nil {
		return err
	}
	if !r.Valid() {
		return fmt.Errorf("%w: %s", ErrFault, r.Fault)
	}
	return nil
}

// Temperature returns the probe temperature from the last Update in milli-C.
func (d *Device) Temperature() int32 {
	return d.last.Probe
}

// ReferenceTemperature returns the die temperature from the last Update in milli-C.
func (d *Device) ReferenceTemperature() int32 {
	return d.last.Reference
}

// Last returns the reading cached by the last Update.
func (d *Device) Last() Reading {
	return d.last
}
