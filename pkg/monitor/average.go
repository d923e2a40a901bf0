package monitor

import "github.com/itohio/thermomon/pkg/max31855"

// averager keeps a sliding window of valid readings. Faults pass through
// and clear the window.
type averager struct {
	size   int
	probe  []int32
	ref    []int32
	filled int
	next   int
}

func newAverager(size int) *averager {
	if size <= 1 {
		return nil
	}
	return &averager{size: size, probe: make([]int32, size), ref: make([]int32, size)}
}

func (a *averager) add(r max31855.Reading) max31855.Reading {
	if a == nil {
		return r
	}
	if !r.Valid() {
		a.filled, a.next = 0, 0
		return r
	}

	a.probe[a.next] = r.Probe
	a.ref[a.next] = r.Reference
	a.next = (a.next + 1) % a.size
	if a.filled < a.size {
		a.filled++
	}

	var sp, sr int64
	for i := 0; i < a.filled; i++ {
		sp += int64(a.probe[i])
		sr += int64(a.ref[i])
	}
	n := int64(a.filled)
	return max31855.Reading{Probe: int32(sp / n), Reference: int32(sr / n)}
}
