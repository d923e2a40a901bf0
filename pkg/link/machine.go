package link

import "log"

// Config of the state machine. Both values are in ticks.
type Config struct {
	// BackoffCeiling is the number of Failed ticks before a retry.
	BackoffCeiling uint32
	// ConnectTimeout aborts an attempt stuck in Connecting. Zero disables it.
	ConnectTimeout uint32
}

// Machine is the connectivity state machine. It is driven from a single
// goroutine and never blocks.
type Machine struct {
	cfg  Config
	conn Connector

	state    State
	backoff  uint32
	waited   uint32
	attempt  uint64
	aborted  uint64
	lastCode Code
}

// New returns a machine in the Idle state.
func New(cfg Config, conn Connector) *Machine {
	if cfg.BackoffCeiling == 0 {
		cfg.BackoffCeiling = 1
	}
	return &Machine{cfg: cfg, conn: conn}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Backoff returns the number of Failed ticks since the last attempt.
func (m *Machine) Backoff() uint32 { return m.backoff }

// Attempt returns the number of connect attempts issued so far.
func (m *Machine) Attempt() uint64 { return m.attempt }

// LastError returns the code of the most recent failure.
func (m *Machine) LastError() Code { return m.lastCode }

// OnTick advances the machine by one tick. It issues at most one connect.
func (m *Machine) OnTick() {
	switch m.state {
	case Idle:
		m.connect()
	case Failed:
		m.backoff++
		if m.backoff >= m.cfg.BackoffCeiling {
			m.connect()
		}
	case Connecting:
		m.waited++
		if m.cfg.ConnectTimeout > 0 && m.waited >= m.cfg.ConnectTimeout {
			log.Printf("link: attempt %d timed out after %d ticks", m.attempt, m.waited)
			m.aborted = m.attempt
			if err := m.conn.Disconnect(); err != nil {
				log.Printf("link: abort attempt %d: %v", m.attempt, err)
			}
			m.fail(CodeTimeout)
		}
	}
}

func (m *Machine) connect() {
	m.backoff = 0
	m.waited = 0
	m.attempt++
	m.state = Connecting
	if err := m.conn.Connect(m.attempt); err != nil {
		log.Printf("link: connect attempt %d: %v", m.attempt, err)
		m.fail(CodeConnectFailed)
	}
}

func (m *Machine) fail(code Code) {
	if m.state != Failed {
		m.backoff = 0
	}
	m.state = Failed
	m.lastCode = code
}

// Handle applies a transport notification.
func (m *Machine) Handle(ev Event) {
	if ev.Attempt != 0 && (ev.Attempt != m.attempt || ev.Attempt == m.aborted) {
		return
	}

	switch ev.Kind {
	case EventConnected:
		if m.state != Connected {
			m.state = Connected
			m.backoff = 0
			m.lastCode = CodeNone
		}
	case EventError:
		m.fail(ev.Code)
	case EventDisconnected:
		switch m.state {
		case Connected:
			m.state = Idle
		case Connecting:
			m.fail(CodeConnectFailed)
		}
	}
}

// Observe applies a polled link status.
func (m *Machine) Observe(s Status) {
	if !s.Known() {
		log.Printf("link: unknown status %d", uint8(s))
		m.Handle(Event{Kind: EventError, Code: CodeUnknown})
		return
	}
	switch s {
	case StatusConnected:
		m.Handle(Event{Kind: EventConnected})
	case StatusIdle:
		if m.state == Connected {
			m.Handle(Event{Kind: EventDisconnected})
		}
	case StatusConnecting:
	case StatusWrongCredentials:
		m.Handle(Event{Kind: EventError, Code: CodeCredentials})
	case StatusNotFound:
		m.Handle(Event{Kind: EventError, Code: CodeNotFound})
	case StatusConnectFailed:
		m.Handle(Event{Kind: EventError, Code: CodeConnectFailed})
	}
}
