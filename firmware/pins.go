//go:build tinygo

package main

import "machine"

const (
	// Serial configuration
	// Request "R<n>\n" is at most 5 bytes, reply "xxxxxxxx\n" is 9 bytes.
	UART_BAUD_RATE = 115200

	// SPI configuration
	// MAX31855 accepts up to 5 MHz, mode 0, data valid on the falling edge.
	SPI_FREQUENCY = 4000000
	SPI_MODE      = 0

	// Longest accepted request line without the newline.
	MAX_LINE = 4
)

// Chip-select line per probe. The select sent by the host is the index.
var CS_PINS = [...]machine.Pin{
	machine.D1,
	machine.D2,
	machine.D3,
}
