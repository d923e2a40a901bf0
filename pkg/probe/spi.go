package probe

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/itohio/thermomon/pkg/max31855"
)

// DefaultSPISpeed is the fastest clock the MAX31855 accepts.
const DefaultSPISpeed = 5 * physic.MegaHertz

// SPI reads frames from converters on local SPI ports. The select is the
// periph.io port name, e.g. "SPI0.0"; chip-select is driven by the port.
type SPI struct {
	speed physic.Frequency
	open  func(name string) (spi.PortCloser, error)

	mu      sync.Mutex
	ports   map[string]spi.PortCloser
	devices map[string]*max31855.Device
}

// NewSPI initializes the host drivers and returns a reader clocking at
// speedHz (0 selects DefaultSPISpeed).
func NewSPI(speedHz int64) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	return newSPI(speedHz, spireg.Open), nil
}

func newSPI(speedHz int64, open func(string) (spi.PortCloser, error)) *SPI {
	speed := DefaultSPISpeed
	if speedHz > 0 {
		speed = physic.Frequency(speedHz) * physic.Hertz
	}
	return &SPI{
		speed:   speed,
		open:    open,
		ports:   make(map[string]spi.PortCloser),
		devices: make(map[string]*max31855.Device),
	}
}

// ReadRaw reads one frame from the converter on port sel.
func (s *SPI) ReadRaw(sel string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.device(sel)
	if err != nil {
		return 0, err
	}
	raw, err := dev.ReadRaw()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrBus, sel, err)
	}
	return raw, nil
}

func (s *SPI) device(sel string) (*max31855.Device, error) {
	if dev, ok := s.devices[sel]; ok {
		return dev, nil
	}

	p, err := s.open(sel)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrSelect, sel, err)
	}
	conn, err := p.Connect(s.speed, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: failed to connect %s: %w", ErrBus, sel, err)
	}

	dev := max31855.New(conn, nil)
	s.ports[sel] = p
	s.devices[sel] = dev
	return dev, nil
}

// Close releases every opened port.
func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for sel, p := range s.ports {
		if err := p.Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close %s: %w", sel, err)
		}
		delete(s.ports, sel)
		delete(s.devices, sel)
	}
	return first
}
