// Package monitor runs the periodic control loop: sample every enabled
// thermocouple, keep the display in step with the readings, drive the link
// state machine and push status while the link is up.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itohio/thermomon/pkg/link"
	"github.com/itohio/thermomon/pkg/max31855"
	"github.com/itohio/thermomon/pkg/report"
	"github.com/itohio/thermomon/pkg/sh1106"
)

// DefaultInterval is the tick period.
const DefaultInterval = 500 * time.Millisecond

// BusReader reads a raw converter frame for a chip-select.
type BusReader interface {
	ReadRaw(sel string) (uint32, error)
}

// Surface is the page-level display.
type Surface interface {
	ClearPage(page int, inverted bool, startColumn int) error
	WriteLine(page, startColumn int, text string, inverted bool, align sh1106.Align) error
	SetInvert(inv bool) error
}

// Transport carries status pushes and reports asynchronous link events.
type Transport interface {
	Send(b []byte) error
	Events() <-chan link.Event
}

var _ Surface = (*sh1106.Display)(nil)

var ErrNoDisplay = errors.New("monitor: no display")

// ChannelConfig describes a probe slot.
type ChannelConfig struct {
	ID      int
	Enabled bool
	Select  string
	// Page defaults to 2+ID when zero.
	Page int
}

// Config of the control loop.
type Config struct {
	Interval    time.Duration
	Device      string
	ServerLabel string
	StatusPage  int
	Invert      bool
	Units       Units
	Average     int
	PushEvery   int
	// Request is the template for status pushes; Body is filled per push.
	Request  report.Request
	Channels []ChannelConfig
}

// Deps are the collaborators of the loop. Link, Source and Transport are
// optional.
type Deps struct {
	Bus       BusReader
	Display   Surface
	Link      *link.Machine
	Source    link.Source
	Transport Transport
}

// ConfigError rejects a single channel.
type ConfigError struct {
	Channel int
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("channel %d: %s", e.Channel, e.Reason)
}

// Channel is the loop's view of one probe slot.
type Channel struct {
	ID      int
	Enabled bool
	Select  string
	Page    int

	last  max31855.Reading
	has   bool
	dirty bool
	avg   *averager
	down  bool // last bus read failed

	shown page
	known bool // shown matches the panel
}

// Reading returns the last reading and whether there is one.
func (c *Channel) Reading() (max31855.Reading, bool) {
	return c.last, c.has
}

// Snapshot is published to observers after each tick.
type Snapshot struct {
	Time     time.Time
	Seq      uint64
	Link     link.State
	Status   string
	Channels []ChannelReading
}

// ChannelReading is one channel in a Snapshot.
type ChannelReading struct {
	ID      int
	Enabled bool
	Valid   bool // false until the first sample
	Reading max31855.Reading
}

// Monitor is the control loop. Tick must be called from one goroutine.
type Monitor struct {
	cfg       Config
	bus       BusReader
	display   Surface
	machine   *link.Machine
	source    link.Source
	transport Transport

	channels []*Channel
	rejected []error

	label       string
	status      page
	statusKnown bool
	statusDirty bool

	seq       uint64
	sincePush int
	now       func() time.Time
	observers []func(Snapshot)
}

// New validates the configuration and builds the loop. Invalid channels are
// dropped and reported by Rejected; the rest keep working.
func New(cfg Config, deps Deps) (*Monitor, error) {
	if deps.Display == nil {
		return nil, ErrNoDisplay
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PushEvery <= 0 {
		cfg.PushEvery = 1
	}
	if cfg.StatusPage < 0 || cfg.StatusPage >= sh1106.Pages {
		return nil, fmt.Errorf("monitor: status page %d out of range", cfg.StatusPage)
	}

	m := &Monitor{
		cfg:         cfg,
		bus:         deps.Bus,
		display:     deps.Display,
		machine:     deps.Link,
		source:      deps.Source,
		transport:   deps.Transport,
		statusDirty: true,
		now:         time.Now,
	}

	ids := make(map[int]bool)
	pages := map[int]bool{cfg.StatusPage: true}
	for _, cc := range cfg.Channels {
		ch, err := m.newChannel(cc, ids, pages)
		if err != nil {
			log.Printf("monitor: %v; channel disabled", err)
			m.rejected = append(m.rejected, err)
			continue
		}
		m.channels = append(m.channels, ch)
	}

	return m, nil
}

func (m *Monitor) newChannel(cc ChannelConfig, ids, pages map[int]bool) (*Channel, error) {
	if cc.ID < 0 {
		return nil, &ConfigError{Channel: cc.ID, Reason: "negative id"}
	}
	if ids[cc.ID] {
		return nil, &ConfigError{Channel: cc.ID, Reason: "duplicate id"}
	}
	pg := cc.Page
	if pg == 0 {
		pg = 2 + cc.ID
	}
	if pg < 0 || pg >= sh1106.Pages {
		return nil, &ConfigError{Channel: cc.ID, Reason: fmt.Sprintf("page %d out of range", pg)}
	}
	if pages[pg] {
		return nil, &ConfigError{Channel: cc.ID, Reason: fmt.Sprintf("page %d already in use", pg)}
	}
	if cc.Enabled && cc.Select == "" {
		return nil, &ConfigError{Channel: cc.ID, Reason: "no bus select"}
	}
	if cc.Enabled && m.bus == nil {
		return nil, &ConfigError{Channel: cc.ID, Reason: "no bus reader"}
	}

	ids[cc.ID] = true
	pages[pg] = true
	return &Channel{
		ID:      cc.ID,
		Enabled: cc.Enabled,
		Select:  cc.Select,
		Page:    pg,
		dirty:   true,
		avg:     newAverager(m.cfg.Average),
	}, nil
}

// Rejected returns the configuration errors of dropped channels.
func (m *Monitor) Rejected() []error {
	return m.rejected
}

// Channels returns the accepted channels.
func (m *Monitor) Channels() []*Channel {
	return m.channels
}

// OnTick registers fn to receive a snapshot after every tick. fn runs on
// the loop goroutine and must not block.
func (m *Monitor) OnTick(fn func(Snapshot)) {
	m.observers = append(m.observers, fn)
}

// Start prepares the panel. Failures are logged; the loop retries drawing.
func (m *Monitor) Start() {
	if err := m.display.SetInvert(m.cfg.Invert); err != nil {
		log.Printf("monitor: display: %v", err)
	}
}

// Run ticks every Interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.Start()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick runs one iteration of the loop. It never waits on I/O completion.
func (m *Monitor) Tick() {
	m.seq++
	m.advanceLink()
	m.sample()
	m.flush()
	m.push()
	m.publish()
}

func (m *Monitor) advanceLink() {
	if m.machine == nil {
		return
	}
	if m.source != nil {
		m.machine.Observe(m.source.Status())
	}
	if m.transport != nil {
		m.drain()
	}
	m.machine.OnTick()

	if label := statusLabel(m.machine, m.cfg.ServerLabel); label != m.label {
		m.label = label
		m.statusDirty = true
	}
}

func (m *Monitor) drain() {
	events := m.transport.Events()
	for {
		select {
		case ev := <-events:
			m.machine.Handle(ev)
			switch ev.Kind {
			case link.EventReceived:
				if ev.Reply < 200 || ev.Reply >= 300 {
					log.Printf("monitor: collector replied %d: %s", ev.Reply, ev.Data)
				}
			case link.EventError:
				log.Printf("monitor: link error: %s (attempt %d)", ev.Code, m.machine.Attempt())
			}
		default:
			return
		}
	}
}

func (m *Monitor) sample() {
	for _, ch := range m.channels {
		if !ch.Enabled {
			continue
		}

		var r max31855.Reading
		raw, err := m.bus.ReadRaw(ch.Select)
		if err != nil {
			if !ch.down {
				log.Printf("monitor: probe %d: %v", ch.ID+1, err)
			}
			r = max31855.Reading{Fault: max31855.BusFault}
		} else {
			if ch.down {
				log.Printf("monitor: probe %d: bus recovered", ch.ID+1)
			}
			r = max31855.Decode(raw)
		}
		ch.down = err != nil
		r = ch.avg.add(r)

		if !ch.has || m.render(ch, r) != m.render(ch, ch.last) {
			ch.dirty = true
		}
		ch.last = r
		ch.has = true
	}
}

func (m *Monitor) render(ch *Channel, r max31855.Reading) page {
	return channelPage(ch.ID, ch.Enabled, true, r, m.cfg.Units)
}

func (m *Monitor) flush() {
	if m.statusDirty {
		if m.label == "" {
			m.label = statusLabel(m.machine, m.cfg.ServerLabel)
		}
		if err := m.draw(m.cfg.StatusPage, &m.status, &m.statusKnown, statusPage(m.label)); err != nil {
			log.Printf("monitor: status line: %v", err)
		} else {
			m.statusDirty = false
		}
	}

	for _, ch := range m.channels {
		if !ch.dirty {
			continue
		}
		want := channelPage(ch.ID, ch.Enabled, ch.has, ch.last, m.cfg.Units)
		if want.n == 0 {
			continue
		}
		if err := m.draw(ch.Page, &ch.shown, &ch.known, want); err != nil {
			log.Printf("monitor: probe %d page: %v", ch.ID+1, err)
			continue
		}
		ch.dirty = false
	}
}

// draw brings one page from shown to want with as few writes as possible.
func (m *Monitor) draw(pg int, shown *page, known *bool, want page) error {
	if *known && *shown == want {
		return nil
	}

	if *known && patchable(*shown, want) {
		s := want.seg[want.n-1]
		if err := m.display.WriteLine(pg, s.column, s.text, want.inverted, s.align); err != nil {
			*known = false
			return err
		}
		*shown = want
		return nil
	}

	*known = false
	if err := m.display.ClearPage(pg, want.inverted, 0); err != nil {
		return err
	}
	for _, s := range want.seg[:want.n] {
		if err := m.display.WriteLine(pg, s.column, s.text, want.inverted, s.align); err != nil {
			return err
		}
	}
	*shown = want
	*known = true
	return nil
}

func (m *Monitor) push() {
	if m.machine == nil || m.transport == nil || m.machine.State() != link.Connected {
		m.sincePush = 0
		return
	}
	m.sincePush++
	if m.sincePush < m.cfg.PushEvery {
		return
	}
	m.sincePush = 0

	st := report.Status{Device: m.cfg.Device, Seq: m.seq, Time: m.now()}
	for _, ch := range m.channels {
		if ch.Enabled && ch.has {
			st.Channels = append(st.Channels, report.NewChannel(ch.ID, ch.last))
		}
	}
	body, err := st.Marshal()
	if err != nil {
		log.Printf("monitor: push: %v", err)
		return
	}
	req := m.cfg.Request
	req.Body = body
	msg, err := req.Bytes()
	if err != nil {
		log.Printf("monitor: push: %v", err)
		return
	}
	if err := m.transport.Send(msg); err != nil {
		log.Printf("monitor: push: %v", err)
	}
}

func (m *Monitor) publish() {
	if len(m.observers) == 0 {
		return
	}
	snap := Snapshot{
		Time:     m.now(),
		Seq:      m.seq,
		Status:   m.label,
		Channels: make([]ChannelReading, 0, len(m.channels)),
	}
	if m.machine != nil {
		snap.Link = m.machine.State()
	}
	for _, ch := range m.channels {
		snap.Channels = append(snap.Channels, ChannelReading{
			ID:      ch.ID,
			Enabled: ch.Enabled,
			Valid:   ch.has,
			Reading: ch.last,
		})
	}
	for _, fn := range m.observers {
		fn(snap)
	}
}
