//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/thermomon/pkg/max31855"
)

const hexDigits = "0123456789abcdef"

var (
	uart = machine.UART0
	bus  = machine.SPI0

	probes [len(CS_PINS)]*max31855.Device

	// Serial buffer for reading lines
	lineBuf  [MAX_LINE]byte
	linePos  int
	overflow bool

	reply [9]byte
)

func main() {
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	bus.Configure(machine.SPIConfig{
		Frequency: SPI_FREQUENCY,
		Mode:      SPI_MODE,
	})

	for i, pin := range CS_PINS {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		probes[i] = max31855.New(bus, pin)
		probes[i].Configure()
	}

	for {
		processSerial()
		time.Sleep(100 * time.Microsecond)
	}
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if linePos > 0 && !overflow {
				handleRequest(lineBuf[:linePos])
			}
			linePos = 0
			overflow = false
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if linePos < len(lineBuf) {
			lineBuf[linePos] = data
			linePos++
		} else {
			overflow = true
		}
	}
}

// handleRequest answers "R<index>" with the raw frame as eight hex digits.
func handleRequest(line []byte) {
	if line[0] != 'R' || len(line) < 2 {
		uart.Write([]byte("E request\n"))
		return
	}

	sel := 0
	for _, c := range line[1:] {
		if c < '0' || c > '9' {
			uart.Write([]byte("E select\n"))
			return
		}
		sel = sel*10 + int(c-'0')
	}
	if sel >= len(probes) {
		uart.Write([]byte("E select\n"))
		return
	}

	raw, err := probes[sel].ReadRaw()
	if err != nil {
		uart.Write([]byte("E spi\n"))
		return
	}

	for i := 0; i < 8; i++ {
		reply[i] = hexDigits[(raw>>(28-4*i))&0xF]
	}
	reply[8] = '\n'
	uart.Write(reply[:])
}
