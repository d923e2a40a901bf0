package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/thermomon/pkg/config"
	"github.com/itohio/thermomon/pkg/history"
	"github.com/itohio/thermomon/pkg/max31855"
	"github.com/itohio/thermomon/pkg/scope"
)

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	window     fyne.Window

	history     *history.Recorder
	scopeWidget *scope.ScopeWidget
	panelHolder *fyne.Container
	faultHolder *fyne.Container
	startBtn    *widget.Button

	backend *backend
	cancel  context.CancelFunc
	done    chan struct{}

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the toolbar with Start/Stop, Settings and Clear buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	state.startBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		handleStart(state)
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	clearBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		state.history.Reset()
	})

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.startBtn, settingsBtn),
		container.NewHBox(clearBtn),
		nil,
	)
}

func (state *appState) running() bool {
	return state.backend != nil
}

// handleStart starts the monitor, or stops it when it is running.
func handleStart(state *appState) {
	if state.running() {
		state.stop()
		state.startBtn.SetIcon(theme.MediaPlayIcon())
		state.panelHolder.Objects = nil
		state.panelHolder.Refresh()
		state.rebuildFaults()
		log.Println("Monitor stopped")
		return
	}

	b, err := buildBackend(state.cfg)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to start monitor: %w", err), state.window)
		return
	}
	for _, rej := range b.mon.Rejected() {
		dialog.ShowError(rej, state.window)
	}

	b.mon.OnTick(state.history.Record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.mon.Run(ctx)
	}()

	state.backend = b
	state.cancel = cancel
	state.done = done

	state.panelHolder.Objects = []fyne.CanvasObject{newPanel(b)}
	state.panelHolder.Refresh()
	state.rebuildFaults()
	state.startBtn.SetIcon(theme.MediaStopIcon())
	log.Printf("Monitor started (%s probes, %s display)", state.cfg.Probes.Bus, state.cfg.Display.Transport)
}

// stop cancels the loop, waits for it to return and releases the buses.
func (state *appState) stop() {
	if state.backend == nil {
		return
	}
	state.cancel()
	<-state.done
	state.backend.Close()
	state.backend = nil
	state.cancel = nil
	state.done = nil
}

// restart applies a changed configuration to a running monitor.
func (state *appState) restart() {
	if !state.running() {
		return
	}
	handleStart(state)
	handleStart(state)
}

// throttled returns a history callback that updates the scope at most
// every 100ms on the UI thread.
func throttled(state *appState) func([]history.Series) {
	const (
		updateInterval = 100 * time.Millisecond
		rateSpan       = time.Minute
	)
	return func(series []history.Series) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		rates := make(map[int]float64, len(series))
		for _, ser := range series {
			if r, ok := state.history.Rate(ser.ID, rateSpan); ok {
				rates[ser.ID] = r
			}
		}
		fyne.Do(func() {
			state.scopeWidget.UpdateData(series, rates)
		})
	}
}

var faultChoices = []struct {
	name  string
	fault max31855.Fault
}{
	{"OK", 0},
	{"Open", max31855.OpenCircuit},
	{"Short", max31855.ShortToGround | max31855.ShortToSupply},
	{"GND", max31855.ShortToGround},
	{"VCC", max31855.ShortToSupply},
	{"No response", max31855.BusFault},
}

// faultBox returns the container holding the simulated fault selectors.
func (state *appState) faultBox() fyne.CanvasObject {
	state.faultHolder = container.NewVBox()
	state.rebuildFaults()
	return state.faultHolder
}

// rebuildFaults shows one fault selector per enabled channel when the
// probes are simulated.
func (state *appState) rebuildFaults() {
	state.faultHolder.Objects = nil
	if state.backend != nil && state.backend.mock != nil {
		mock := state.backend.mock
		names := make([]string, len(faultChoices))
		for i, c := range faultChoices {
			names[i] = c.name
		}
		state.faultHolder.Add(widget.NewLabelWithStyle("Simulated faults", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))
		for _, ch := range state.cfg.Channels {
			if !ch.Enabled {
				continue
			}
			sel := ch.Select
			choice := widget.NewSelect(names, func(name string) {
				for _, c := range faultChoices {
					if c.name == name {
						mock.SetFault(sel, c.fault)
						return
					}
				}
			})
			choice.SetSelected(faultName(mock.Fault(sel)))
			state.faultHolder.Add(container.NewBorder(nil, nil, widget.NewLabel(fmt.Sprintf("Probe %d", ch.ID+1)), nil, choice))
		}
	}
	state.faultHolder.Refresh()
}

func faultName(f max31855.Fault) string {
	for _, c := range faultChoices {
		if c.fault == f {
			return c.name
		}
	}
	return faultChoices[0].name
}
