package scope

import (
	"testing"
	"time"

	"github.com/itohio/thermomon/pkg/history"
	"github.com/itohio/thermomon/pkg/max31855"
	"github.com/itohio/thermomon/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func points(n int) []history.Point {
	out := make([]history.Point, n)
	for i := range out {
		out[i] = history.Point{Time: t0.Add(time.Duration(i) * time.Second), Probe: int32(i * 100)}
	}
	return out
}

func TestDownsample(t *testing.T) {
	t.Run("short input is copied", func(t *testing.T) {
		src := points(5)
		dst := downsample(nil, src, 10)
		assert.Equal(t, src, dst)
		dst[0].Probe = -1
		assert.Equal(t, int32(0), src[0].Probe)
	})

	t.Run("long input is decimated and keeps the newest", func(t *testing.T) {
		src := points(1000)
		dst := downsample(nil, src, 100)
		require.Len(t, dst, 100)
		assert.Equal(t, src[0], dst[0])
		assert.Equal(t, src[10], dst[1])
		assert.Equal(t, src[999], dst[99])
	})

	t.Run("reuses destination", func(t *testing.T) {
		buf := make([]history.Point, 0, 50)
		dst := downsample(buf, points(20), 50)
		assert.Len(t, dst, 20)
		assert.Equal(t, cap(buf), cap(dst))
	})
}

func TestAutoScale_Empty(t *testing.T) {
	yMin, yMax, xMin, xMax := autoScale(nil, monitor.Celsius, time.Minute, t0)
	assert.Equal(t, 0.0, yMin)
	assert.Equal(t, 100.0, yMax)
	assert.Equal(t, t0.Add(-time.Minute), xMin)
	assert.Equal(t, t0, xMax)
}

func TestAutoScale_MarginAndWindow(t *testing.T) {
	series := []history.Series{
		{ID: 0, Points: []history.Point{
			{Time: t0, Probe: 20000},
			{Time: t0.Add(time.Second), Fault: max31855.OpenCircuit},
			{Time: t0.Add(2 * time.Second), Probe: 30000},
		}},
	}
	yMin, yMax, xMin, xMax := autoScale(series, monitor.Celsius, time.Minute, t0)
	assert.InDelta(t, 19.0, yMin, 1e-9)
	assert.InDelta(t, 31.0, yMax, 1e-9)
	assert.Equal(t, t0.Add(2*time.Second), xMax)
	assert.Equal(t, xMax.Add(-time.Minute), xMin)
}

func TestAutoScale_FlatTraceHasMinimumSpan(t *testing.T) {
	series := []history.Series{{Points: []history.Point{{Time: t0, Probe: 25000}}}}
	yMin, yMax, _, _ := autoScale(series, monitor.Celsius, time.Minute, t0)
	assert.InDelta(t, 24.9, yMin, 1e-9)
	assert.InDelta(t, 25.1, yMax, 1e-9)
}

func TestAutoScale_OnlyFaults(t *testing.T) {
	series := []history.Series{{Spans: []history.Span{{Start: t0, End: t0.Add(5 * time.Second), Fault: max31855.BusFault}}}}
	_, _, xMin, xMax := autoScale(series, monitor.Celsius, time.Minute, t0)
	assert.Equal(t, t0.Add(5*time.Second), xMax)
	assert.Equal(t, xMax.Add(-time.Minute), xMin)
}

func TestDegrees(t *testing.T) {
	assert.InDelta(t, 100.0, degrees(100000, monitor.Celsius), 1e-9)
	assert.InDelta(t, 212.0, degrees(100000, monitor.Fahrenheit), 1e-9)
	assert.InDelta(t, -40.0, degrees(-40000, monitor.Fahrenheit), 1e-9)
}

func TestChannelColor(t *testing.T) {
	assert.Equal(t, ChannelColor(0), ChannelColor(len(palette)))
	assert.NotEqual(t, ChannelColor(0), ChannelColor(1))
	assert.Equal(t, ChannelColor(2), ChannelColor(-2))
}

func TestFormatAgo(t *testing.T) {
	assert.Equal(t, "now", formatAgo(0))
	assert.Equal(t, "-1m30s", formatAgo(90*time.Second))
	assert.Equal(t, "-5s", formatAgo(4600*time.Millisecond))
}

func TestLegendText(t *testing.T) {
	ser := history.Series{ID: 1, Points: []history.Point{{Time: t0, Probe: 25500}}}
	assert.Equal(t, "Probe 2 25.50°C +1.5°C/min", legendText(ser, 1.5, true, monitor.Celsius))
	assert.Equal(t, "Probe 2 77.90°F -2.7°F/min", legendText(ser, -1.5, true, monitor.Fahrenheit))
	assert.Equal(t, "Probe 2 25.50°C", legendText(ser, 0, false, monitor.Celsius))

	ser.Points = append(ser.Points, history.Point{Time: t0.Add(time.Second), Fault: max31855.OpenCircuit})
	assert.Equal(t, "Probe 2 open", legendText(ser, 1.5, true, monitor.Celsius))
	assert.Equal(t, "Probe 3", legendText(history.Series{ID: 2}, 0, false, monitor.Celsius))
}
