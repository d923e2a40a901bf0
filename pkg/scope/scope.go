package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/thermomon/pkg/history"
	"github.com/itohio/thermomon/pkg/monitor"
)

// ScopeWidget is a custom Fyne widget that plots probe temperatures over time.
type ScopeWidget struct {
	widget.BaseWidget

	units  monitor.Units
	window time.Duration

	// Data (protected by mu)
	mu      sync.RWMutex
	display []history.Series
	rates   map[int]float64 // °C per minute

	yMin, yMax float64 // degrees in the selected units
	xMin, xMax time.Time

	maxDisplayPoints int
}

// New creates a new ScopeWidget showing at least window worth of time.
func New(window time.Duration, units monitor.Units) *ScopeWidget {
	s := &ScopeWidget{
		units:            units,
		window:           window,
		maxDisplayPoints: 600,
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData replaces the plotted series and the legend rates, keyed by
// channel ID in °C per minute. Call it through fyne.Do when invoked from a
// non-UI goroutine.
func (s *ScopeWidget) UpdateData(series []history.Series, rates map[int]float64) {
	s.mu.Lock()
	s.rates = rates
	if cap(s.display) < len(series) {
		s.display = make([]history.Series, len(series))
	}
	s.display = s.display[:len(series)]
	for i, ser := range series {
		s.display[i].ID = ser.ID
		s.display[i].Spans = ser.Spans
		s.display[i].Points = downsample(s.display[i].Points, ser.Points, s.maxDisplayPoints)
	}
	s.yMin, s.yMax, s.xMin, s.xMax = autoScale(s.display, s.units, s.window, time.Now())
	s.mu.Unlock()

	s.Refresh()
}

// SetUnits switches the temperature scale of the Y axis.
func (s *ScopeWidget) SetUnits(units monitor.Units) {
	s.mu.Lock()
	s.units = units
	s.yMin, s.yMax, s.xMin, s.xMax = autoScale(s.display, s.units, s.window, time.Now())
	s.mu.Unlock()
	s.Refresh()
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}

// downsample decimates src into dst, reusing dst when it is large enough.
func downsample(dst, src []history.Point, maxPoints int) []history.Point {
	n := len(src)
	if n > maxPoints {
		n = maxPoints
	}
	if cap(dst) < n {
		dst = make([]history.Point, 0, n)
	}
	dst = dst[:0]
	if len(src) <= maxPoints {
		return append(dst, src...)
	}
	step := float64(len(src)) / float64(maxPoints)
	for i := range maxPoints {
		dst = append(dst, src[int(float64(i)*step)])
	}
	// Keep the newest point so the trace reaches the right edge.
	dst[len(dst)-1] = src[len(src)-1]
	return dst
}

// degrees converts milli-degrees Celsius to the requested units.
func degrees(milliC int32, units monitor.Units) float64 {
	c := float64(milliC) / 1000
	if units == monitor.Fahrenheit {
		return c*9/5 + 32
	}
	return c
}

// autoScale returns the plot range for the valid points of series with a 10%
// vertical margin. The time range spans at least window.
func autoScale(series []history.Series, units monitor.Units, window time.Duration, now time.Time) (yMin, yMax float64, xMin, xMax time.Time) {
	first := true
	for _, ser := range series {
		for _, p := range ser.Points {
			if p.Fault != 0 {
				continue
			}
			v := degrees(p.Probe, units)
			if first {
				yMin, yMax = v, v
				xMin, xMax = p.Time, p.Time
				first = false
				continue
			}
			yMin = min(yMin, v)
			yMax = max(yMax, v)
			if p.Time.Before(xMin) {
				xMin = p.Time
			}
			if p.Time.After(xMax) {
				xMax = p.Time
			}
		}
		for _, sp := range ser.Spans {
			if first {
				xMin, xMax = sp.Start, sp.End
				yMin, yMax = 0, 0
				first = false
			}
			if sp.Start.Before(xMin) {
				xMin = sp.Start
			}
			if sp.End.After(xMax) {
				xMax = sp.End
			}
		}
	}
	if first {
		return 0, 100, now.Add(-window), now
	}

	span := yMax - yMin
	if span < 1 {
		span = 1
	}
	yMin -= span * 0.1
	yMax += span * 0.1

	if xMax.Sub(xMin) < window {
		xMin = xMax.Add(-window)
	}
	return yMin, yMax, xMin, xMax
}

var palette = []color.RGBA{
	{R: 255, G: 165, B: 0, A: 255},
	{R: 100, G: 200, B: 255, A: 255},
	{R: 120, G: 220, B: 120, A: 255},
	{R: 240, G: 100, B: 200, A: 255},
	{R: 240, G: 240, B: 120, A: 255},
	{R: 180, G: 140, B: 255, A: 255},
}

// ChannelColor returns the trace color of channel id.
func ChannelColor(id int) color.RGBA {
	if id < 0 {
		id = -id
	}
	return palette[id%len(palette)]
}
