package history

import (
	"testing"
	"time"

	"github.com/itohio/thermomon/pkg/max31855"
	"github.com/itohio/thermomon/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func snap(sec int, readings ...monitor.ChannelReading) monitor.Snapshot {
	return monitor.Snapshot{Time: t0.Add(time.Duration(sec) * time.Second), Channels: readings}
}

func ok(id int, probe int32) monitor.ChannelReading {
	return monitor.ChannelReading{ID: id, Enabled: true, Valid: true, Reading: max31855.Reading{Probe: probe}}
}

func faulted(id int, f max31855.Fault) monitor.ChannelReading {
	return monitor.ChannelReading{ID: id, Enabled: true, Valid: true, Reading: max31855.Reading{Fault: f}}
}

func TestRecorder_SkipsDisabledAndUnsampled(t *testing.T) {
	r := New(time.Minute)
	r.Record(snap(0,
		ok(0, 1000),
		monitor.ChannelReading{ID: 1, Enabled: false, Valid: true},
		monitor.ChannelReading{ID: 2, Enabled: true, Valid: false},
	))

	series := r.Series()
	require.Len(t, series, 1)
	assert.Equal(t, 0, series[0].ID)
	assert.Len(t, series[0].Points, 1)
}

func TestRecorder_OrderedByID(t *testing.T) {
	r := New(time.Minute)
	r.Record(snap(0, ok(3, 1), ok(0, 2), ok(1, 3)))

	series := r.Series()
	require.Len(t, series, 3)
	assert.Equal(t, []int{0, 1, 3}, []int{series[0].ID, series[1].ID, series[2].ID})
}

func TestRecorder_TrimsByTimestamp(t *testing.T) {
	r := New(10 * time.Second)
	for i := 0; i < 30; i++ {
		r.Record(snap(i, ok(0, int32(i*1000))))
	}

	s, found := r.Channel(0)
	require.True(t, found)
	require.NotEmpty(t, s.Points)
	assert.Equal(t, t0.Add(19*time.Second), s.Points[0].Time)
	last, _ := s.Latest()
	assert.Equal(t, int32(29000), last.Probe)
	assert.Len(t, s.Points, 11)
}

func TestRecorder_FaultSpans(t *testing.T) {
	r := New(time.Minute)
	r.Record(snap(0, ok(0, 1000)))
	r.Record(snap(1, faulted(0, max31855.OpenCircuit)))
	r.Record(snap(2, faulted(0, max31855.OpenCircuit)))
	r.Record(snap(3, faulted(0, max31855.ShortToGround)))
	r.Record(snap(4, ok(0, 1000)))
	r.Record(snap(5, faulted(0, max31855.OpenCircuit)))

	s, _ := r.Channel(0)
	require.Len(t, s.Spans, 3)
	assert.Equal(t, Span{Start: t0.Add(time.Second), End: t0.Add(2 * time.Second), Fault: max31855.OpenCircuit}, s.Spans[0])
	assert.Equal(t, Span{Start: t0.Add(3 * time.Second), End: t0.Add(3 * time.Second), Fault: max31855.ShortToGround}, s.Spans[1])
	assert.Equal(t, max31855.OpenCircuit, s.Spans[2].Fault)
}

func TestRecorder_SpanClippedToWindow(t *testing.T) {
	r := New(5 * time.Second)
	for i := 0; i < 10; i++ {
		r.Record(snap(i, faulted(0, max31855.BusFault)))
	}

	s, _ := r.Channel(0)
	require.Len(t, s.Spans, 1)
	assert.Equal(t, t0.Add(4*time.Second), s.Spans[0].Start)
	assert.Equal(t, t0.Add(9*time.Second), s.Spans[0].End)
}

func TestRecorder_Rate(t *testing.T) {
	r := New(10 * time.Minute)
	// 30 s apart, +1.5 °C each: 3 °C/min.
	for i := 0; i < 5; i++ {
		r.Record(snap(i*30, ok(0, int32(20000+i*1500))))
	}
	r.Record(snap(150, faulted(0, max31855.OpenCircuit)))

	rate, found := r.Rate(0, time.Minute)
	require.True(t, found)
	assert.InDelta(t, 3.0, rate, 1e-9)

	_, found = r.Rate(7, time.Minute)
	assert.False(t, found)
}

func TestRecorder_RateNeedsTwoPoints(t *testing.T) {
	r := New(time.Minute)
	r.Record(snap(0, ok(0, 1000)))

	_, found := r.Rate(0, time.Minute)
	assert.False(t, found)
}

func TestRecorder_CopiesAreIndependent(t *testing.T) {
	r := New(time.Minute)
	r.Record(snap(0, ok(0, 1000)))

	s, _ := r.Channel(0)
	s.Points[0].Probe = 42

	again, _ := r.Channel(0)
	assert.Equal(t, int32(1000), again.Points[0].Probe)
}

func TestRecorder_OnUpdate(t *testing.T) {
	r := New(time.Minute)
	var got [][]Series
	r.OnUpdate(func(s []Series) { got = append(got, s) })

	r.Record(snap(0, ok(0, 1000)))
	r.Record(snap(1, ok(0, 2000)))
	r.Reset()

	require.Len(t, got, 3)
	assert.Len(t, got[1][0].Points, 2)
	assert.Empty(t, got[2])
}

func TestRecorder_NoCallbacksAfterClose(t *testing.T) {
	r := New(time.Minute)
	calls := make(chan struct{}, 10)
	r.OnUpdate(func([]Series) { calls <- struct{}{} })

	input := make(chan monitor.Snapshot, 2)
	input <- snap(0, ok(0, 1000))
	close(input)
	r.Process(input)
	assert.Len(t, calls, 1)

	r.Record(snap(1, ok(0, 2000)))
	assert.Len(t, calls, 1)
	s, _ := r.Channel(0)
	assert.Len(t, s.Points, 1)
}

func TestNew_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, New(0).Window())
}
