package link

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	attempts    []uint64
	disconnects int
	err         error
}

func (f *fakeConnector) Connect(attempt uint64) error {
	f.attempts = append(f.attempts, attempt)
	return f.err
}

func (f *fakeConnector) Disconnect() error {
	f.disconnects++
	return nil
}

func TestMachineStartsIdleAndConnectsOnFirstTick(t *testing.T) {
	c := &fakeConnector{}
	m := New(Config{BackoffCeiling: 3}, c)
	assert.Equal(t, Idle, m.State())

	m.OnTick()
	assert.Equal(t, Connecting, m.State())
	assert.Equal(t, []uint64{1}, c.attempts)

	m.Handle(Event{Kind: EventConnected, Attempt: 1})
	assert.Equal(t, Connected, m.State())
	assert.Zero(t, m.Backoff())

	m.OnTick()
	m.OnTick()
	assert.Len(t, c.attempts, 1)
}

func TestMachineBackoffFromPolledStatus(t *testing.T) {
	c := &fakeConnector{}
	m := New(Config{BackoffCeiling: 3}, c)

	m.Observe(StatusIdle)
	m.OnTick()
	require.Equal(t, []uint64{1}, c.attempts)

	var backoffs []uint32
	for i := 0; i < 3; i++ {
		m.Observe(StatusConnectFailed)
		m.OnTick()
		backoffs = append(backoffs, m.Backoff())
		if i < 2 {
			assert.Len(t, c.attempts, 1, "tick %d", i)
			assert.Equal(t, Failed, m.State())
		}
	}

	assert.Equal(t, []uint64{1, 2}, c.attempts)
	assert.Equal(t, []uint32{1, 2, 0}, backoffs)
	assert.Equal(t, Connecting, m.State())
	assert.Equal(t, CodeConnectFailed, m.LastError())
}

func TestMachineBackoffStrictlyIncreases(t *testing.T) {
	c := &fakeConnector{err: errors.New("no route")}
	m := New(Config{BackoffCeiling: 5}, c)

	m.OnTick()
	require.Equal(t, Failed, m.State())
	require.Zero(t, m.Backoff())

	for want := uint32(1); want < 5; want++ {
		m.OnTick()
		assert.Equal(t, want, m.Backoff())
	}
	m.OnTick()
	assert.Zero(t, m.Backoff())
	assert.Len(t, c.attempts, 2)
	assert.Equal(t, Failed, m.State())
}

func TestMachineZeroCeilingRetriesEveryTick(t *testing.T) {
	c := &fakeConnector{err: errors.New("refused")}
	m := New(Config{}, c)

	for i := 0; i < 4; i++ {
		m.OnTick()
	}
	assert.Len(t, c.attempts, 4)
}

func TestMachineConnectTimeout(t *testing.T) {
	c := &fakeConnector{}
	m := New(Config{BackoffCeiling: 2, ConnectTimeout: 3}, c)

	m.OnTick()
	m.OnTick()
	m.OnTick()
	assert.Equal(t, Connecting, m.State())

	m.OnTick()
	assert.Equal(t, Failed, m.State())
	assert.Equal(t, CodeTimeout, m.LastError())
	assert.Equal(t, 1, c.disconnects)

	// late success from the aborted attempt is ignored
	m.Handle(Event{Kind: EventConnected, Attempt: 1})
	assert.Equal(t, Failed, m.State())
}

func TestMachineDisconnect(t *testing.T) {
	c := &fakeConnector{}
	m := New(Config{BackoffCeiling: 3}, c)

	m.OnTick()
	m.Observe(StatusConnected)
	require.Equal(t, Connected, m.State())

	m.Handle(Event{Kind: EventDisconnected})
	assert.Equal(t, Idle, m.State())

	m.OnTick()
	assert.Equal(t, Connecting, m.State())
	assert.Len(t, c.attempts, 2)

	m.Handle(Event{Kind: EventDisconnected, Attempt: 2})
	assert.Equal(t, Failed, m.State())
}

func TestMachineObserve(t *testing.T) {
	tests := []struct {
		status Status
		want   State
		code   Code
	}{
		{StatusIdle, Connecting, CodeNone},
		{StatusConnecting, Connecting, CodeNone},
		{StatusWrongCredentials, Failed, CodeCredentials},
		{StatusNotFound, Failed, CodeNotFound},
		{StatusConnectFailed, Failed, CodeConnectFailed},
		{StatusConnected, Connected, CodeNone},
		{Status(42), Failed, CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			m := New(Config{BackoffCeiling: 3}, &fakeConnector{})
			m.OnTick()
			m.Observe(tt.status)
			assert.Equal(t, tt.want, m.State())
			assert.Equal(t, tt.code, m.LastError())
		})
	}
}

func TestMachineRepeatedErrorKeepsBackoff(t *testing.T) {
	m := New(Config{BackoffCeiling: 10}, &fakeConnector{})
	m.OnTick()
	m.Handle(Event{Kind: EventError, Code: CodeSendFailed})
	m.OnTick()
	m.OnTick()
	m.Handle(Event{Kind: EventError, Code: CodeConnectFailed})
	assert.Equal(t, uint32(2), m.Backoff())
	assert.Equal(t, CodeConnectFailed, m.LastError())
}

func TestMachineUnknownStatus(t *testing.T) {
	c := &fakeConnector{}
	m := New(Config{BackoffCeiling: 3}, c)
	m.OnTick()
	require.Equal(t, uint64(1), m.Attempt())

	m.Observe(Status(9))
	assert.Equal(t, Failed, m.State())
	assert.Equal(t, CodeUnknown, m.LastError())

	m.Observe(StatusConnected)
	assert.Equal(t, Connected, m.State())
	assert.Equal(t, uint64(1), m.Attempt())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "wrong credentials", StatusWrongCredentials.String())
	assert.False(t, Status(9).Known())
	assert.True(t, StatusConnected.Known())
	assert.Equal(t, "received", EventReceived.String())
	assert.Equal(t, "timeout", CodeTimeout.String())
}
