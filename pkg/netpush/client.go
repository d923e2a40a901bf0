// Package netpush is a TCP uplink for status pushes. It implements the
// link package's Connector and Source and queues writes so callers never
// wait on the network.
package netpush

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/itohio/thermomon/pkg/link"
	"github.com/itohio/thermomon/pkg/report"
)

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultWriteTimeout = 2 * time.Second
	DefaultQueueSize    = 4
	DefaultEventBuffer  = 32

	maxReplyBody = 512
)

var (
	ErrNotConnected = errors.New("netpush: not connected")
	ErrQueueFull    = errors.New("netpush: send queue full")
)

// Config of a Client.
type Config struct {
	Addr         string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	QueueSize    int
	EventBuffer  int
}

// Client maintains at most one connection to the collector.
type Client struct {
	cfg    Config
	dialer net.Dialer
	events chan link.Event

	mu      sync.Mutex
	status  link.Status
	current uint64
	conn    net.Conn
	queue   chan []byte
	cancel  context.CancelFunc
}

var (
	_ link.Connector = (*Client)(nil)
	_ link.Source    = (*Client)(nil)
)

// New returns an idle client.
func New(cfg Config) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	return &Client{
		cfg:    cfg,
		events: make(chan link.Event, cfg.EventBuffer),
	}
}

// Events returns the notification channel. When it is full the oldest
// notification is dropped.
func (c *Client) Events() <-chan link.Event {
	return c.events
}

// Status returns the current connection status.
func (c *Client) Status() link.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect starts dialing in the background and returns immediately.
func (c *Client) Connect(attempt uint64) error {
	if c.cfg.Addr == "" {
		return fmt.Errorf("netpush: no collector address")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardown()
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	c.cancel = cancel
	c.current = attempt
	c.status = link.StatusConnecting

	go c.dial(ctx, attempt)
	return nil
}

// Disconnect aborts a pending dial or closes the connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown()
	c.status = link.StatusIdle
	return nil
}

// Close is Disconnect.
func (c *Client) Close() error {
	return c.Disconnect()
}

// Send queues one message for the current connection.
func (c *Client) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != link.StatusConnected || c.queue == nil {
		return ErrNotConnected
	}
	select {
	case c.queue <- b:
		return nil
	default:
		return ErrQueueFull
	}
}

// teardown releases the current attempt. Callers hold mu.
func (c *Client) teardown() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.queue != nil {
		close(c.queue)
		c.queue = nil
	}
	c.current = 0
}

func (c *Client) dial(ctx context.Context, attempt uint64) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.cfg.Addr)

	c.mu.Lock()
	defer c.mu.Unlock()

	if attempt != c.current {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if err != nil {
		status, code := classify(err)
		log.Printf("netpush: dial %s: %v", c.cfg.Addr, err)
		c.current = 0
		c.status = status
		c.emit(link.Event{Kind: link.EventError, Attempt: attempt, Code: code})
		return
	}

	q := make(chan []byte, c.cfg.QueueSize)
	c.conn = conn
	c.queue = q
	c.status = link.StatusConnected

	go c.writeLoop(conn, q, attempt)
	go c.readLoop(conn, attempt)

	c.emit(link.Event{Kind: link.EventConnected, Attempt: attempt})
}

func (c *Client) writeLoop(conn net.Conn, q <-chan []byte, attempt uint64) {
	for b := range q {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		if _, err := conn.Write(b); err != nil {
			c.drop(attempt, link.StatusConnectFailed, link.CodeSendFailed, err)
			return
		}
		c.emit(link.Event{Kind: link.EventSent, Attempt: attempt})
	}
}

func (c *Client) readLoop(conn net.Conn, attempt uint64) {
	br := bufio.NewReader(conn)
	for {
		resp, err := report.ReadResponse(br, maxReplyBody)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				c.closed(attempt)
			} else {
				c.drop(attempt, link.StatusConnectFailed, link.CodeConnectFailed, err)
			}
			return
		}

		c.emit(link.Event{Kind: link.EventReceived, Attempt: attempt, Reply: resp.Code, Data: resp.Body})
		if resp.Unauthorized() {
			c.drop(attempt, link.StatusWrongCredentials, link.CodeCredentials,
				fmt.Errorf("collector replied %d %s", resp.Code, resp.Reason))
			return
		}
	}
}

// drop ends attempt after an error.
func (c *Client) drop(attempt uint64, status link.Status, code link.Code, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if attempt != c.current {
		return
	}
	log.Printf("netpush: %s: %v", c.cfg.Addr, err)
	c.teardown()
	c.status = status
	c.emit(link.Event{Kind: link.EventError, Attempt: attempt, Code: code})
}

// closed ends attempt after the peer hung up.
func (c *Client) closed(attempt uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if attempt != c.current {
		return
	}
	c.teardown()
	c.status = link.StatusIdle
	c.emit(link.Event{Kind: link.EventDisconnected, Attempt: attempt})
}

func (c *Client) emit(ev link.Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}

func classify(err error) (link.Status, link.Code) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return link.StatusNotFound, link.CodeNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return link.StatusConnectFailed, link.CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return link.StatusConnectFailed, link.CodeTimeout
	}
	return link.StatusConnectFailed, link.CodeConnectFailed
}
