package probe

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the bridge firmware.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 100 * time.Millisecond
)

// port is the part of serial.Port the bridge uses.
type port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Serial reads frames through the bridge firmware. A request is "R<sel>\n";
// the reply is eight hex digits or "E <reason>".
type Serial struct {
	name     string
	baudRate int
	timeout  time.Duration

	mu      sync.Mutex
	conn    port
	pending []byte
	rbuf    [64]byte
}

// NewSerial returns a bridge reader for the named port.
func NewSerial(name string, baudRate int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{name: name, baudRate: baudRate, timeout: DefaultTimeout}
}

// Connect opens the serial port.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("already connected")
	}

	p, err := serial.Open(s.name, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.name, err)
	}
	return s.attach(p)
}

func (s *Serial) attach(p port) error {
	if err := p.SetReadTimeout(s.timeout / 4); err != nil {
		p.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	s.conn = p
	s.pending = s.pending[:0]
	return nil
}

// Close closes the serial port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		log.Printf("Error closing serial port: %v", err)
	}
	return err
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// ReadRaw asks the bridge for one frame from sel.
func (s *Serial) ReadRaw(sel string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0, fmt.Errorf("%w: not connected", ErrBus)
	}

	if err := s.conn.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBus, err)
	}
	s.pending = s.pending[:0]

	if _, err := io.WriteString(s.conn, "R"+sel+"\n"); err != nil {
		return 0, fmt.Errorf("%w: failed to send request: %w", ErrBus, err)
	}

	line, err := s.readLine(time.Now().Add(s.timeout))
	if err != nil {
		return 0, err
	}
	return parseReply(line)
}

func (s *Serial) readLine(deadline time.Time) (string, error) {
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := string(s.pending[:i])
			s.pending = s.pending[i+1:]
			return strings.TrimSpace(line), nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: reply timeout", ErrBus)
		}
		n, err := s.conn.Read(s.rbuf[:])
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrBus, err)
		}
		s.pending = append(s.pending, s.rbuf[:n]...)
	}
}

// parseReply parses a bridge reply line.
// Format: 8 hex digits, or "E <reason>"
// Example: 06401900
func parseReply(line string) (uint32, error) {
	if strings.HasPrefix(line, "E") {
		reason := strings.TrimSpace(line[1:])
		if reason == "select" {
			return 0, fmt.Errorf("%w: bridge rejected select", ErrSelect)
		}
		return 0, fmt.Errorf("%w: bridge: %s", ErrBus, reason)
	}
	if len(line) != 8 {
		return 0, fmt.Errorf("%w: invalid reply %q", ErrBus, line)
	}
	v, err := strconv.ParseUint(line, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid reply %q: %w", ErrBus, line, err)
	}
	return uint32(v), nil
}
