// Package history keeps a sliding time window of readings per channel for
// trend plots.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/itohio/thermomon/pkg/max31855"
	"github.com/itohio/thermomon/pkg/monitor"
)

// Point is one channel reading at a point in time.
type Point struct {
	Time  time.Time
	Probe int32 // milli-degrees Celsius, zero when Fault != 0
	Fault max31855.Fault
}

// Span is a run of consecutive faulted points with the same flags.
type Span struct {
	Start time.Time
	End   time.Time
	Fault max31855.Fault
}

// Series is the history of one channel, oldest first.
type Series struct {
	ID     int
	Points []Point
	Spans  []Span
}

// Latest returns the newest point.
func (s Series) Latest() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

type series struct {
	points []Point
	spans  []Span
}

// Recorder collects monitor snapshots. Points older than the window,
// measured from the newest snapshot, are dropped.
type Recorder struct {
	window time.Duration

	mu       sync.RWMutex
	series   map[int]*series
	shutdown bool

	callbacks []func([]Series)
	cbMu      sync.RWMutex
}

// DefaultWindow is used when New is given a non-positive window.
const DefaultWindow = 10 * time.Minute

// New creates a recorder keeping window worth of points.
func New(window time.Duration) *Recorder {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Recorder{
		window: window,
		series: make(map[int]*series),
	}
}

// Window returns the retention window.
func (r *Recorder) Window() time.Duration {
	return r.window
}

// Process records snapshots from input until it is closed. After that no
// more callbacks fire.
func (r *Recorder) Process(input <-chan monitor.Snapshot) {
	for s := range input {
		r.Record(s)
	}
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()
}

// Record adds the enabled, sampled channels of s. Suitable as a
// monitor.Monitor observer.
func (r *Recorder) Record(s monitor.Snapshot) {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return
	}
	for _, c := range s.Channels {
		if !c.Enabled || !c.Valid {
			continue
		}
		r.add(c.ID, Point{Time: s.Time, Probe: c.Reading.Probe, Fault: c.Reading.Fault})
	}
	r.trim(s.Time.Add(-r.window))
	r.mu.Unlock()

	r.notify()
}

func (r *Recorder) add(id int, p Point) {
	ser, ok := r.series[id]
	if !ok {
		ser = &series{}
		r.series[id] = ser
	}

	if p.Fault != 0 {
		extended := false
		if n := len(ser.points); n > 0 && len(ser.spans) > 0 {
			prev := ser.points[n-1]
			last := &ser.spans[len(ser.spans)-1]
			if prev.Fault == p.Fault && last.Fault == p.Fault && last.End.Equal(prev.Time) {
				last.End = p.Time
				extended = true
			}
		}
		if !extended {
			ser.spans = append(ser.spans, Span{Start: p.Time, End: p.Time, Fault: p.Fault})
		}
	}
	ser.points = append(ser.points, p)
}

func (r *Recorder) trim(cutoff time.Time) {
	for _, ser := range r.series {
		i := 0
		for i < len(ser.points) && ser.points[i].Time.Before(cutoff) {
			i++
		}
		if i > 0 {
			ser.points = append(ser.points[:0], ser.points[i:]...)
		}
		j := 0
		for j < len(ser.spans) && ser.spans[j].End.Before(cutoff) {
			j++
		}
		if j > 0 {
			ser.spans = append(ser.spans[:0], ser.spans[j:]...)
		}
		if len(ser.spans) > 0 && ser.spans[0].Start.Before(cutoff) {
			ser.spans[0].Start = cutoff
		}
	}
}

// Series returns a copy of every channel history ordered by channel ID.
func (r *Recorder) Series() []Series {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot()
}

func (r *Recorder) snapshot() []Series {
	out := make([]Series, 0, len(r.series))
	for id, ser := range r.series {
		out = append(out, Series{
			ID:     id,
			Points: append([]Point(nil), ser.points...),
			Spans:  append([]Span(nil), ser.spans...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Channel returns a copy of one channel history.
func (r *Recorder) Channel(id int) (Series, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ser, ok := r.series[id]
	if !ok {
		return Series{}, false
	}
	return Series{
		ID:     id,
		Points: append([]Point(nil), ser.points...),
		Spans:  append([]Span(nil), ser.spans...),
	}, true
}

// Rate returns the probe temperature change of channel id in degrees
// Celsius per minute, using the first and last valid points no older than
// span before the newest one. ok is false with fewer than two such points.
func (r *Recorder) Rate(id int, span time.Duration) (rate float64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ser, found := r.series[id]
	if !found {
		return 0, false
	}

	var first, last *Point
	for i := len(ser.points) - 1; i >= 0; i-- {
		p := &ser.points[i]
		if p.Fault != 0 {
			continue
		}
		if last == nil {
			last = p
		}
		if last.Time.Sub(p.Time) > span {
			break
		}
		first = p
	}
	if first == nil || last == nil || first == last {
		return 0, false
	}
	dt := last.Time.Sub(first.Time).Minutes()
	if dt <= 0 {
		return 0, false
	}
	return float64(last.Probe-first.Probe) / 1000 / dt, true
}

// Reset drops all history.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.series = make(map[int]*series)
	r.mu.Unlock()
	r.notify()
}

// OnUpdate registers fn to receive a copy of every series after each change.
func (r *Recorder) OnUpdate(fn func([]Series)) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

func (r *Recorder) notify() {
	r.cbMu.RLock()
	callbacks := make([]func([]Series), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.cbMu.RUnlock()
	if len(callbacks) == 0 {
		return
	}

	data := r.Series()
	for _, cb := range callbacks {
		cb(data)
	}
}
