package main

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"

	"github.com/oukeidos/ravemix/internal/logger"
)

// withPanicGuard runs fn and turns a panic into a log line plus an
// optional onPanic call.
func withPanicGuard(scope string, onPanic func(any), fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered panic", "scope", scope, "panic", fmt.Sprint(r))
			if onPanic != nil {
				onPanic(r)
			}
		}
	}()
	fn()
}

// recoverer is the onPanic hook for scope, nil before the window exists.
func (a *ravemixApp) recoverer(scope string) func(any) {
	if a == nil {
		return nil
	}
	return func(r any) { a.handleRecoveredPanic(scope, r) }
}

// safeGo runs blocking core calls (probe, rave, import, save, the naming
// loop) off the UI goroutine.
func (a *ravemixApp) safeGo(scope string, fn func()) {
	go withPanicGuard(scope, a.recoverer(scope), fn)
}

// safeDo moves widget updates onto the UI goroutine. Recorder, player,
// selection and sender subscribers all fire from worker goroutines.
func (a *ravemixApp) safeDo(scope string, fn func()) {
	fyne.Do(func() {
		withPanicGuard(scope, a.recoverer(scope), fn)
	})
}

// handleRecoveredPanic stops capture and playback and tells the user once.
func (a *ravemixApp) handleRecoveredPanic(scope string, _ any) {
	if a == nil || a.core == nil {
		return
	}
	if fyne.CurrentApp() == nil {
		return
	}
	a.core.Library.ForceStop()
	a.core.Player.Reset()

	a.panicNoticeOnce.Do(func() {
		a.safeDo("panic.notice", func() {
			if a.window == nil {
				return
			}
			dialog.ShowInformation(
				"Unexpected Error",
				"An internal error stopped the current action ("+scope+"). Please retry. If this repeats, restart the app.",
				a.window,
			)
		})
	})
}
