package sh1106

import "sync"

// Emulator is an in-memory model of the controller RAM and the subset of
// the command set this package emits.
type Emulator struct {
	mu sync.RWMutex

	ram      [Pages][RAMWidth]byte
	page     int
	column   int
	invert   bool
	on       bool
	force    bool
	remap    bool
	flip     bool
	start    int
	contrast uint8
	pending  byte // first byte of a two byte command

	onChange []func()
}

var _ Transport = (*Emulator)(nil)

// NewEmulator returns a powered-off controller with blank RAM.
func NewEmulator() *Emulator {
	return &Emulator{contrast: DefaultContrast}
}

// OnChange registers fn to be called after every transfer.
func (e *Emulator) OnChange(fn func()) {
	e.mu.Lock()
	e.onChange = append(e.onChange, fn)
	e.mu.Unlock()
}

func (e *Emulator) SendCommand(cmd []byte) error {
	e.mu.Lock()
	for _, c := range cmd {
		e.exec(c)
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

func (e *Emulator) SendPixels(data []byte) error {
	e.mu.Lock()
	for _, b := range data {
		if e.column < RAMWidth {
			e.ram[e.page][e.column] = b
			e.column++
		}
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

func (e *Emulator) exec(c byte) {
	if e.pending != 0 {
		switch e.pending {
		case cmdContrast:
			e.contrast = c
		}
		e.pending = 0
		return
	}

	switch {
	case c <= 0x0F:
		e.column = e.column&0xF0 | int(c&0x0F)
	case c >= cmdHighColumn && c <= 0x1F:
		e.column = int(c&0x0F)<<4 | e.column&0x0F
	case c == cmdContrast || c == cmdDCDCMode:
		e.pending = c
	case c&0xFE == cmdInvert:
		e.invert = c&1 == 1
	case c&0xFE == cmdDisplayPower:
		e.on = c&1 == 1
	case c&0xF8 == cmdPage:
		e.page = int(c & 0x07)
	case c&0xC0 == cmdStartLine:
		e.start = int(c & 0x3F)
	case c&0xFE == cmdSegRemap:
		e.remap = c&1 == 1
	case c&0xFE == cmdForceOn:
		e.force = c&1 == 1
	case c&0xF7 == cmdScanDir:
		e.flip = c&0x08 != 0
	}
}

func (e *Emulator) notify() {
	e.mu.RLock()
	fns := e.onChange
	e.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// Pixel reports whether the visible pixel at x, y is lit.
func (e *Emulator) Pixel(x, y int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return pixel(&e.ram, e.start, e.force, e.invert, x, y)
}

// Page returns the visible bytes of page.
func (e *Emulator) Page(page int) []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]byte, Width)
	copy(out, e.ram[page&0x07][ColumnOffset:ColumnOffset+Width])
	return out
}

// State is a copy of the emulated controller. Pixel reports the image as
// seen on a correctly mounted panel, so Remap and Flip do not mirror it.
type State struct {
	RAM       [Pages][RAMWidth]byte
	Invert    bool
	On        bool
	ForceOn   bool
	Remap     bool
	Flip      bool
	StartLine int
	Contrast  uint8
}

// Snapshot returns a copy of the controller state.
func (e *Emulator) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		RAM:       e.ram,
		Invert:    e.invert,
		On:        e.on,
		ForceOn:   e.force,
		Remap:     e.remap,
		Flip:      e.flip,
		StartLine: e.start,
		Contrast:  e.contrast,
	}
}

// Pixel reports whether the visible pixel at x, y is lit.
func (s *State) Pixel(x, y int) bool {
	return pixel(&s.RAM, s.StartLine, s.ForceOn, s.Invert, x, y)
}

func pixel(ram *[Pages][RAMWidth]byte, start int, force, invert bool, x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return false
	}
	if force {
		return true
	}
	row := (y + start) % Height
	lit := ram[row/8][x+ColumnOffset]&(1<<(row%8)) != 0
	return lit != invert
}
