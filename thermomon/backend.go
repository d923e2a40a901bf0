package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/itohio/thermomon/pkg/config"
	"github.com/itohio/thermomon/pkg/link"
	"github.com/itohio/thermomon/pkg/monitor"
	"github.com/itohio/thermomon/pkg/netpush"
	"github.com/itohio/thermomon/pkg/probe"
	"github.com/itohio/thermomon/pkg/report"
	"github.com/itohio/thermomon/pkg/sh1106"
)

var errPin = errors.New("unknown gpio pin")

// backend is one assembled measurement chain.
type backend struct {
	bus     monitor.BusReader
	mock    *probe.Mock
	emu     *sh1106.Emulator
	display *sh1106.Display
	client  *netpush.Client
	machine *link.Machine
	mon     *monitor.Monitor

	closers []io.Closer
}

// Close releases the buses and the uplink.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
	b.closers = nil
}

// buildBackend wires probes, display and uplink from cfg. The emulator is
// always present so the viewer can mirror the panel; with the spi display
// transport every transfer goes to both.
func buildBackend(cfg *config.Config) (*backend, error) {
	b := &backend{emu: sh1106.NewEmulator()}

	if err := b.openProbes(cfg); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openDisplay(cfg); err != nil {
		b.Close()
		return nil, err
	}
	if cfg.Link.Enabled {
		b.client = netpush.New(netpush.Config{
			Addr:        cfg.Link.Server,
			DialTimeout: cfg.Link.DialTimeout,
		})
		b.closers = append(b.closers, b.client)
		b.machine = link.New(link.Config{
			BackoffCeiling: cfg.Link.BackoffTicks,
			ConnectTimeout: cfg.Link.ConnectTimeout,
		}, b.client)
	}

	mcfg, err := monitorConfig(cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	deps := monitor.Deps{Bus: b.bus, Display: b.display}
	if b.client != nil {
		deps.Link = b.machine
		deps.Source = b.client
		deps.Transport = b.client
	}
	b.mon, err = monitor.New(mcfg, deps)
	if err != nil {
		b.Close()
		return nil, err
	}
	if err := b.display.Init(cfg.Display.Contrast); err != nil {
		log.Printf("display init: %v", err)
	}
	return b, nil
}

func (b *backend) openProbes(cfg *config.Config) error {
	switch cfg.Probes.Bus {
	case config.BusMock:
		b.mock = probe.NewMock(&cfg.Mock)
		b.bus = b.mock
		log.Println("Using simulated probes")
	case config.BusSerial:
		s := probe.NewSerial(cfg.Probes.Port, cfg.Probes.BaudRate)
		if err := s.Connect(); err != nil {
			return fmt.Errorf("failed to open probe bridge %s: %w", cfg.Probes.Port, err)
		}
		b.bus = s
		b.closers = append(b.closers, s)
		log.Printf("Connected to probe bridge: %s", cfg.Probes.Port)
	case config.BusSPI:
		s, err := probe.NewSPI(cfg.Probes.SpeedHz)
		if err != nil {
			return err
		}
		b.bus = s
		b.closers = append(b.closers, s)
	default:
		return fmt.Errorf("%w: unknown probe bus %q", config.ErrInvalid, cfg.Probes.Bus)
	}
	return nil
}

func (b *backend) openDisplay(cfg *config.Config) error {
	switch cfg.Display.Transport {
	case config.DisplayEmulator:
		b.display = sh1106.New(b.emu)
	case config.DisplaySPI:
		t, err := openPanel(cfg.Display)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, t)
		b.display = sh1106.New(sh1106.Tee{t, b.emu})
	default:
		return fmt.Errorf("%w: unknown display transport %q", config.ErrInvalid, cfg.Display.Transport)
	}
	return nil
}

// panel is an SPI attached SH1106 and the port it owns.
type panel struct {
	*sh1106.SPITransport
	port spi.PortCloser
}

func (p *panel) Close() error {
	return p.port.Close()
}

func openPanel(cfg config.DisplayConfig) (*panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	dc := gpioreg.ByName(cfg.DCPin)
	if dc == nil {
		return nil, fmt.Errorf("%w: dc %q", errPin, cfg.DCPin)
	}
	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open display port %s: %w", cfg.Port, err)
	}
	conn, err := port.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure display port %s: %w", cfg.Port, err)
	}
	if cfg.ResetPin != "" {
		if err := resetPanel(gpioreg.ByName(cfg.ResetPin)); err != nil {
			port.Close()
			return nil, fmt.Errorf("%w: reset %q", err, cfg.ResetPin)
		}
	}
	return &panel{SPITransport: sh1106.NewSPI(conn, dc), port: port}, nil
}

func resetPanel(rst gpio.PinOut) error {
	if rst == nil {
		return errPin
	}
	if err := rst.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	if err := rst.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	return nil
}

// monitorConfig translates the file configuration into the loop settings.
func monitorConfig(cfg *config.Config) (monitor.Config, error) {
	mc := monitor.Config{
		Interval:   cfg.Interval,
		Device:     cfg.Device,
		StatusPage: cfg.Display.StatusPage,
		Invert:     cfg.Display.Invert,
		Units:      unitsOf(cfg),
		Average:    cfg.Average,
		PushEvery:  cfg.Link.PushEvery,
	}
	for _, ch := range cfg.Channels {
		mc.Channels = append(mc.Channels, monitor.ChannelConfig{
			ID:      ch.ID,
			Enabled: ch.Enabled,
			Select:  ch.Select,
			Page:    ch.Page,
		})
	}

	if cfg.Link.Enabled {
		method, err := report.ParseMethod(cfg.Link.Method)
		if err != nil {
			return monitor.Config{}, err
		}
		mc.ServerLabel = cfg.Link.Server
		mc.Request = report.Request{
			Method:   method,
			Host:     cfg.Link.Server,
			Resource: cfg.Link.Resource,
			Token:    cfg.Link.Token,
		}
	}
	return mc, nil
}

func unitsOf(cfg *config.Config) monitor.Units {
	if cfg.Units == config.UnitsFahrenheit {
		return monitor.Fahrenheit
	}
	return monitor.Celsius
}
