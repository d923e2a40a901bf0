package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"

	"github.com/itohio/thermomon/pkg/config"
	"github.com/itohio/thermomon/pkg/history"
	"github.com/itohio/thermomon/pkg/monitor"
	"github.com/itohio/thermomon/pkg/oled"
	"github.com/itohio/thermomon/pkg/scope"
)

func main() {
	var (
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		portFlag     = flag.String("p", "", "Probe bridge serial port override (e.g., COM3 or /dev/ttyACM0)")
		mockFlag     = flag.Bool("mock", false, "Use simulated probes instead of the configured bus")
		headlessFlag = flag.Bool("headless", false, "Run without a window until interrupted")
		serverFlag   = flag.String("server", "", "Collector host:port override; enables the uplink")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyOverrides(cfg, *portFlag, *mockFlag, *serverFlag)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *headlessFlag {
		if err := runHeadless(cfg); err != nil && err != context.Canceled {
			log.Fatal(err)
		}
		return
	}
	runWindow(cfg, *configFlag)
}

// applyOverrides folds command line flags into cfg.
func applyOverrides(cfg *config.Config, port string, mock bool, server string) {
	if port != "" {
		cfg.Probes.Port = port
		cfg.Probes.Bus = config.BusSerial
	}
	if mock {
		cfg.Probes.Bus = config.BusMock
	}
	if server != "" {
		cfg.Link.Server = server
		cfg.Link.Enabled = true
	}
}

func runHeadless(cfg *config.Config) error {
	b, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	b.mon.OnTick(logChanges())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Printf("Monitoring %d channels every %v", len(b.mon.Channels()), cfg.Interval)
	return b.mon.Run(ctx)
}

// logChanges returns an observer that logs the status line and channel
// faults whenever they change.
func logChanges() func(monitor.Snapshot) {
	var status string
	faults := make(map[int]string)
	return func(s monitor.Snapshot) {
		if s.Status != status {
			status = s.Status
			log.Printf("Link: %s", status)
		}
		for _, c := range s.Channels {
			if !c.Enabled || !c.Valid {
				continue
			}
			f := c.Reading.Fault.String()
			if faults[c.ID] != f {
				faults[c.ID] = f
				log.Printf("Probe %d: %s", c.ID+1, f)
			}
		}
	}
}

func runWindow(cfg *config.Config, configPath string) {
	application := app.NewWithID("com.itohio.thermomon")

	window := application.NewWindow("Thermocouple Monitor")
	window.Resize(fyne.NewSize(1100, 700))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: configPath,
		window:     window,
		history:    history.New(cfg.History.Window),
	}
	state.scopeWidget = scope.New(state.history.Window(), unitsOf(cfg))
	state.history.OnUpdate(throttled(state))

	state.panelHolder = container.NewStack()
	toolbar := createToolbar(state)

	content := container.NewBorder(
		toolbar,
		nil,
		container.NewVBox(state.panelHolder, state.faultBox()),
		nil,
		state.scopeWidget,
	)
	window.SetContent(content)
	window.SetOnClosed(func() {
		state.stop()
	})

	handleStart(state)
	window.ShowAndRun()
}

// panelScale is the number of screen pixels per OLED dot.
const panelScale = 3

func newPanel(b *backend) fyne.CanvasObject {
	return oled.NewPanel(b.emu, panelScale)
}
