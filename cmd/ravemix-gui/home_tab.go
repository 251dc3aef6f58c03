package main

import (
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/logger"
	"github.com/oukeidos/ravemix/internal/settings"
	"github.com/oukeidos/ravemix/internal/workflow"
)

// homeTab edits the server address and shows whether it answers.
type homeTab struct {
	content fyne.CanvasObject
	status  *widget.Label
	problem *widget.Label
	enter   func()
}

func (a *ravemixApp) buildHome() *homeTab {
	h := &homeTab{}
	conn := a.core.Connection
	addr := conn.Address()

	scheme := widget.NewSelect([]string{string(settings.SchemeHTTP), string(settings.SchemeHTTPS)}, nil)
	scheme.SetSelected(string(addr.Scheme))
	host := widget.NewEntry()
	host.SetText(addr.Host)
	host.SetPlaceHolder("192.168.0.1")
	port := widget.NewEntry()
	port.SetText(strconv.Itoa(addr.Port))

	h.status = widget.NewLabel(probeText(conn.State()))
	h.status.TextStyle = fyne.TextStyle{Bold: true}
	h.problem = widget.NewLabel("")
	h.problem.Importance = widget.DangerImportance
	h.problem.Wrapping = fyne.TextWrapWord
	h.problem.Hide()

	patch := func(key string) func(string) {
		return func(value string) {
			if _, err := conn.Patch(key, value); err != nil {
				h.problem.SetText(apperrors.PublicMessage(err))
				h.problem.Show()
				return
			}
			h.problem.Hide()
		}
	}
	scheme.OnChanged = patch(settings.KeyScheme)
	host.OnChanged = patch(settings.KeyHost)
	port.OnChanged = patch(settings.KeyPort)

	probe := func() {
		a.safeGo("home.probe", func() {
			state, err := conn.Probe(a.ctx)
			if err != nil && !apperrors.IsCancelled(err) {
				logger.Warn("Probe failed", "error", err)
			}
			logger.Debug("Probe finished", "state", state.String())
		})
	}
	host.OnSubmitted = func(string) { probe() }
	port.OnSubmitted = func(string) { probe() }
	h.enter = probe

	conn.Subscribe(func(s workflow.ProbeState) {
		a.safeDo("home.status", func() {
			h.status.SetText(probeText(s))
		})
	})

	form := widget.NewForm(
		widget.NewFormItem("Scheme", scheme),
		widget.NewFormItem("Host", host),
		widget.NewFormItem("Port", port),
	)
	connect := widget.NewButtonWithIcon("Connect", theme.ViewRefreshIcon(), probe)
	connect.Importance = widget.HighImportance

	h.content = container.NewVBox(
		widget.NewLabelWithStyle("RAVE server", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		form,
		h.problem,
		container.NewHBox(connect, h.status),
	)
	return h
}
