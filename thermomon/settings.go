package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/thermomon/pkg/config"
	"github.com/itohio/thermomon/pkg/probe"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createProbesTab(state),
		createChannelsTab(state),
		createDisplayTab(state),
		createLinkTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// save validates, writes the configuration and restarts a running monitor.
func (state *appState) save() {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return
	}
	state.scopeWidget.SetUnits(unitsOf(state.cfg))
	state.restart()
}

// createProbesTab creates the probe bus configuration tab.
func createProbesTab(state *appState) *container.TabItem {
	busSelect := widget.NewSelect([]string{config.BusMock, config.BusSerial, config.BusSPI}, nil)
	busSelect.SetSelected(state.cfg.Probes.Bus)

	portOptions, portMap, current := portChoices(state.cfg.Probes.Port)
	portSelect := widget.NewSelect(portOptions, nil)
	if current != "" {
		portSelect.SetSelected(current)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Probes.BaudRate))

	speedEntry := widget.NewEntry()
	speedEntry.SetText(strconv.FormatInt(state.cfg.Probes.SpeedHz, 10))

	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(state.cfg.Interval.String())

	averageEntry := widget.NewEntry()
	averageEntry.SetText(strconv.Itoa(state.cfg.Average))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Bus", Widget: busSelect},
			{Text: "Bridge Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
			{Text: "SPI Clock (Hz)", Widget: speedEntry},
			{Text: "Interval", Widget: intervalEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageEntry},
		},
		OnSubmit: func() {
			if busSelect.Selected != "" {
				state.cfg.Probes.Bus = busSelect.Selected
			}
			if portSelect.Selected != "" {
				port := portMap[portSelect.Selected]
				if port == "" {
					port = portSelect.Selected
				}
				state.cfg.Probes.Port = port
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil {
				state.cfg.Probes.BaudRate = baud
			}
			if hz, err := strconv.ParseInt(speedEntry.Text, 10, 64); err == nil {
				state.cfg.Probes.SpeedHz = hz
			}
			if iv, err := time.ParseDuration(intervalEntry.Text); err == nil {
				state.cfg.Interval = iv
			}
			if avg, err := strconv.Atoi(averageEntry.Text); err == nil {
				state.cfg.Average = avg
			}
			state.save()
		},
	}

	return container.NewTabItem("Probes", form)
}

// portChoices lists the serial ports for a select, keeping currentPort
// available even when it is not plugged in.
func portChoices(currentPort string) (options []string, names map[string]string, current string) {
	names = make(map[string]string)
	if ports, err := probe.Ports(); err == nil {
		for _, port := range ports {
			display := port.Name
			if port.Description != "" && port.Description != port.Name {
				display = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			options = append(options, display)
			names[display] = port.Name
		}
	}

	for _, opt := range options {
		if names[opt] == currentPort {
			return options, names, opt
		}
	}
	if currentPort != "" {
		options = append(options, currentPort)
		names[currentPort] = currentPort
	}
	return options, names, currentPort
}

// createChannelsTab creates the per channel enable and select tab.
func createChannelsTab(state *appState) *container.TabItem {
	type row struct {
		enabled *widget.Check
		sel     *widget.Entry
	}
	rows := make([]row, len(state.cfg.Channels))
	form := &widget.Form{}
	for i, ch := range state.cfg.Channels {
		rows[i].enabled = widget.NewCheck("Enabled", nil)
		rows[i].enabled.SetChecked(ch.Enabled)
		rows[i].sel = widget.NewEntry()
		rows[i].sel.SetText(ch.Select)
		form.Append(fmt.Sprintf("Probe %d", ch.ID+1), container.NewGridWithColumns(2, rows[i].enabled, rows[i].sel))
	}
	form.OnSubmit = func() {
		for i := range rows {
			state.cfg.Channels[i].Enabled = rows[i].enabled.Checked
			state.cfg.Channels[i].Select = rows[i].sel.Text
		}
		state.save()
	}

	return container.NewTabItem("Channels", form)
}

// createDisplayTab creates the OLED and units configuration tab.
func createDisplayTab(state *appState) *container.TabItem {
	transportSelect := widget.NewSelect([]string{config.DisplayEmulator, config.DisplaySPI}, nil)
	transportSelect.SetSelected(state.cfg.Display.Transport)

	unitsSelect := widget.NewSelect([]string{config.UnitsCelsius, config.UnitsFahrenheit}, nil)
	unitsSelect.SetSelected(state.cfg.Units)

	contrastEntry := widget.NewEntry()
	contrastEntry.SetText(strconv.Itoa(int(state.cfg.Display.Contrast)))

	statusPageEntry := widget.NewEntry()
	statusPageEntry.SetText(strconv.Itoa(state.cfg.Display.StatusPage))

	invertCheck := widget.NewCheck("", nil)
	invertCheck.SetChecked(state.cfg.Display.Invert)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Transport", Widget: transportSelect},
			{Text: "Units", Widget: unitsSelect},
			{Text: "Contrast (0-255)", Widget: contrastEntry},
			{Text: "Status Page", Widget: statusPageEntry},
			{Text: "Invert", Widget: invertCheck},
		},
		OnSubmit: func() {
			if transportSelect.Selected != "" {
				state.cfg.Display.Transport = transportSelect.Selected
			}
			if unitsSelect.Selected != "" {
				state.cfg.Units = unitsSelect.Selected
			}
			if c, err := strconv.ParseUint(contrastEntry.Text, 10, 8); err == nil {
				state.cfg.Display.Contrast = uint8(c)
			}
			if p, err := strconv.Atoi(statusPageEntry.Text); err == nil {
				state.cfg.Display.StatusPage = p
			}
			state.cfg.Display.Invert = invertCheck.Checked
			state.save()
		},
	}

	return container.NewTabItem("Display", form)
}

// createLinkTab creates the uplink configuration tab.
func createLinkTab(state *appState) *container.TabItem {
	enabledCheck := widget.NewCheck("", nil)
	enabledCheck.SetChecked(state.cfg.Link.Enabled)

	serverEntry := widget.NewEntry()
	serverEntry.SetText(state.cfg.Link.Server)

	methodSelect := widget.NewSelect([]string{"GET", "POST", "PUT", "DELETE"}, nil)
	methodSelect.SetSelected(state.cfg.Link.Method)

	resourceEntry := widget.NewEntry()
	resourceEntry.SetText(state.cfg.Link.Resource)

	tokenEntry := widget.NewPasswordEntry()
	tokenEntry.SetText(state.cfg.Link.Token)

	backoffEntry := widget.NewEntry()
	backoffEntry.SetText(strconv.FormatUint(uint64(state.cfg.Link.BackoffTicks), 10))

	timeoutEntry := widget.NewEntry()
	timeoutEntry.SetText(strconv.FormatUint(uint64(state.cfg.Link.ConnectTimeout), 10))

	pushEntry := widget.NewEntry()
	pushEntry.SetText(strconv.Itoa(state.cfg.Link.PushEvery))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Enabled", Widget: enabledCheck},
			{Text: "Server (host:port)", Widget: serverEntry},
			{Text: "Method", Widget: methodSelect},
			{Text: "Resource", Widget: resourceEntry},
			{Text: "Token", Widget: tokenEntry},
			{Text: "Backoff Ceiling (ticks)", Widget: backoffEntry},
			{Text: "Connect Timeout (ticks, 0=none)", Widget: timeoutEntry},
			{Text: "Push Every (ticks)", Widget: pushEntry},
		},
		OnSubmit: func() {
			state.cfg.Link.Enabled = enabledCheck.Checked
			state.cfg.Link.Server = serverEntry.Text
			if methodSelect.Selected != "" {
				state.cfg.Link.Method = methodSelect.Selected
			}
			state.cfg.Link.Resource = resourceEntry.Text
			state.cfg.Link.Token = tokenEntry.Text
			if v, err := strconv.ParseUint(backoffEntry.Text, 10, 32); err == nil {
				state.cfg.Link.BackoffTicks = uint32(v)
			}
			if v, err := strconv.ParseUint(timeoutEntry.Text, 10, 32); err == nil {
				state.cfg.Link.ConnectTimeout = uint32(v)
			}
			if v, err := strconv.Atoi(pushEntry.Text); err == nil {
				state.cfg.Link.PushEvery = v
			}
			state.save()
		},
	}

	return container.NewTabItem("Link", form)
}

// createMockTab creates the simulated probe configuration tab.
func createMockTab(state *appState) *container.TabItem {
	ambientEntry := widget.NewEntry()
	ambientEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Ambient))

	targetEntry := widget.NewEntry()
	targetEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Target))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.Noise))

	tauEntry := widget.NewEntry()
	tauEntry.SetText(state.cfg.Mock.TimeConstant.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Ambient (°C)", Widget: ambientEntry},
			{Text: "Target (°C)", Widget: targetEntry},
			{Text: "Noise (°C)", Widget: noiseEntry},
			{Text: "Time Constant", Widget: tauEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(ambientEntry.Text, 64); err == nil {
				state.cfg.Mock.Ambient = v
			}
			if v, err := strconv.ParseFloat(targetEntry.Text, 64); err == nil {
				state.cfg.Mock.Target = v
			}
			if v, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil {
				state.cfg.Mock.Noise = v
			}
			if v, err := time.ParseDuration(tauEntry.Text); err == nil {
				state.cfg.Mock.TimeConstant = v
			}
			state.save()
		},
	}

	return container.NewTabItem("Mock", form)
}
