package probe

import (
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/thermomon/pkg/config"
	"github.com/itohio/thermomon/pkg/max31855"
)

// Mock simulates thermocouples warming toward a setpoint. Every select is a
// separate probe created on first read.
type Mock struct {
	cfg *config.MockConfig
	now func() time.Time

	mu     sync.Mutex
	probes map[string]*simProbe
}

type simProbe struct {
	temp   float32 // C
	target float32
	fault  max31855.Fault
	last   time.Time
	phase  float32
}

// NewMock creates a simulator. A nil cfg uses built-in defaults.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	return &Mock{
		cfg:    cfg,
		now:    time.Now,
		probes: make(map[string]*simProbe),
	}
}

func (m *Mock) probe(sel string) *simProbe {
	p, ok := m.probes[sel]
	if !ok {
		p = &simProbe{
			temp:   float32(m.cfg.Ambient),
			target: float32(m.cfg.Target),
			last:   m.now(),
			phase:  float32(len(m.probes)) * 1.7,
		}
		m.probes[sel] = p
	}
	return p
}

// ReadRaw advances the probe model and encodes its state as a frame.
func (m *Mock) ReadRaw(sel string) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.probe(sel)
	now := m.now()
	dt := float32(now.Sub(p.last).Seconds())
	p.last = now

	if p.fault.Has(max31855.BusFault) {
		return 0, fmt.Errorf("%w: simulated failure on %s", ErrBus, sel)
	}
	if p.fault != 0 {
		return max31855.Encode(max31855.Reading{Fault: p.fault}), nil
	}

	// First order lag toward the setpoint.
	tau := float32(m.cfg.TimeConstant.Seconds())
	if tau > 0 {
		p.temp += (p.target - p.temp) * (1 - math32.Exp(-dt/tau))
	} else {
		p.temp = p.target
	}
	p.phase += dt
	noise := float32(m.cfg.Noise) * math32.Sin(p.phase*2.3) * math32.Cos(p.phase*0.7)

	return max31855.Encode(max31855.Reading{
		Probe:     int32(math32.Round((p.temp + noise) * 1000)),
		Reference: int32(math32.Round(float32(m.cfg.Ambient) * 1000)),
	}), nil
}

// SetFault injects fault flags for sel. BusFault makes reads fail.
func (m *Mock) SetFault(sel string, f max31855.Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probe(sel).fault = f
}

// Fault returns the injected fault flags for sel.
func (m *Mock) Fault(sel string) max31855.Fault {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probe(sel).fault
}

// SetTarget changes the temperature sel is heading for.
func (m *Mock) SetTarget(sel string, celsius float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probe(sel).target = float32(celsius)
}

// Temperature returns the noiseless model temperature of sel.
func (m *Mock) Temperature(sel string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.probe(sel).temp)
}
