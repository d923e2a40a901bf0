package sh1106

import (
	"periph.io/x/conn/v3/gpio"
)

// Conn is a write capable SPI connection such as periph.io spi.Conn.
type Conn interface {
	Tx(w, r []byte) error
}

// DCPin is the data/command select line. gpio.PinOut satisfies it.
type DCPin interface {
	Out(l gpio.Level) error
}

// SPITransport sends commands with D/C low and pixel data with D/C high.
type SPITransport struct {
	conn Conn
	dc   DCPin
}

var _ Transport = (*SPITransport)(nil)

// NewSPI returns a transport over conn using dc as the data/command line.
func NewSPI(conn Conn, dc DCPin) *SPITransport {
	return &SPITransport{conn: conn, dc: dc}
}

func (s *SPITransport) SendCommand(cmd []byte) error {
	return s.send(gpio.Low, cmd)
}

func (s *SPITransport) SendPixels(data []byte) error {
	return s.send(gpio.High, data)
}

func (s *SPITransport) send(l gpio.Level, b []byte) error {
	if err := s.dc.Out(l); err != nil {
		return err
	}
	return s.conn.Tx(b, nil)
}

// Tee writes to every transport in turn and stops at the first error.
type Tee []Transport

var _ Transport = Tee(nil)

func (t Tee) SendCommand(cmd []byte) error {
	for _, tr := range t {
		if err := tr.SendCommand(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) SendPixels(data []byte) error {
	for _, tr := range t {
		if err := tr.SendPixels(data); err != nil {
			return err
		}
	}
	return nil
}
