// Package probe provides the bus readers that fetch raw MAX31855 frames for
// a chip-select: a serial bridge to a microcontroller, a local SPI bus via
// periph.io, and a simulator.
package probe

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

var (
	// ErrBus is wrapped by every read failure.
	ErrBus = errors.New("probe: bus error")
	// ErrSelect is returned for a select the reader does not know.
	ErrSelect = errors.New("probe: unknown select")
)

// Reader reads one raw frame from the probe at sel.
type Reader interface {
	ReadRaw(sel string) (uint32, error)
}

var (
	_ Reader = (*Serial)(nil)
	_ Reader = (*SPI)(nil)
	_ Reader = (*Mock)(nil)
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}
