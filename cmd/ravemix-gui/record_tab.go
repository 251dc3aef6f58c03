package main

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/recorder"
)

// recordTab lists the library and drives capture, naming and preview.
// Widgets are only touched on the UI goroutine.
type recordTab struct {
	content fyne.CanvasObject
	enter   func()

	items   []catalog.Entry
	syncing bool

	list      *widget.List
	elapsed   *widget.Label
	progress  *widget.ProgressBar
	recordBtn *widget.Button
	saveBtn   *widget.Button
	deleteBtn *widget.Button
	playBtn   *widget.Button
}

func (a *ravemixApp) buildRecord() *recordTab {
	r := &recordTab{}
	lib := a.core.Library

	r.list = widget.NewList(
		func() int { return len(r.items) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(entryLabel(r.items[id]))
		},
	)
	r.list.OnSelected = func(id widget.ListItemID) {
		if r.syncing || id < 0 || id >= len(r.items) {
			return
		}
		e := r.items[id]
		if e.Unsaved() {
			return
		}
		if err := lib.Choose(e); err != nil {
			a.showError(err)
		}
	}

	r.elapsed = widget.NewLabel("")
	r.progress = widget.NewProgressBar()
	r.progress.TextFormatter = func() string { return "" }

	r.recordBtn = widget.NewButtonWithIcon("Record", theme.MediaRecordIcon(), func() { a.toggleRecording(r) })
	r.recordBtn.Importance = widget.DangerImportance
	r.saveBtn = widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), func() {
		a.safeGo("record.save", func() {
			if _, err := lib.SaveCurrent(a.ctx); err != nil {
				a.showError(err)
			}
		})
	})
	r.deleteBtn = widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), func() { a.confirmDelete() })
	r.playBtn = widget.NewButtonWithIcon("Play", theme.MediaPlayIcon(), func() {
		a.safeGo("record.play", func() {
			if err := lib.Play(a.ctx); err != nil {
				a.showError(err)
			}
		})
	})
	importBtn := widget.NewButtonWithIcon("Import", theme.FolderOpenIcon(), func() { a.showImportPicker() })

	a.core.Selection.Subscribe(func(catalog.Entry, bool) {
		a.safeDo("record.selection", func() { r.refresh(a) })
	})
	lib.Recorder().Subscribe(func(st recorder.Status) {
		a.safeDo("record.status", func() { r.showStatus(st) })
	})
	a.core.Player.Subscribe(func(p float64) {
		a.safeDo("record.progress", func() { r.progress.SetValue(p) })
	})

	r.enter = func() {
		a.safeGo("record.refresh", func() {
			if _, err := lib.Refresh(a.ctx); err != nil {
				a.showError(err)
			}
			a.safeDo("record.refresh.ui", func() { r.refresh(a) })
		})
	}

	controls := container.NewGridWithColumns(3, r.recordBtn, r.saveBtn, importBtn)
	preview := container.NewBorder(nil, nil, r.playBtn, r.deleteBtn, r.progress)
	top := container.NewVBox(controls, r.elapsed)
	r.content = container.NewBorder(top, preview, nil, nil, r.list)
	r.refresh(a)
	return r
}

// refresh re-reads the visible entries and mirrors the selection.
func (r *recordTab) refresh(a *ravemixApp) {
	r.items = a.core.Library.Visible()
	cur, ok := a.core.Selection.Get()

	r.syncing = true
	r.list.Refresh()
	if i := indexOf(r.items, cur); ok && i >= 0 {
		r.list.Select(i)
	} else {
		r.list.UnselectAll()
	}
	r.syncing = false

	setEnabled(r.saveBtn, ok && cur.Unsaved())
	setEnabled(r.deleteBtn, ok && cur.Origin != catalog.OriginDefault)
	setEnabled(r.playBtn, ok)
}

func (r *recordTab) showStatus(st recorder.Status) {
	r.elapsed.SetText(elapsedText(st))
	switch {
	case st.Indeterminate:
		r.recordBtn.Disable()
	case st.State == recorder.Recording:
		r.recordBtn.Enable()
		r.recordBtn.SetText("Stop")
		r.recordBtn.SetIcon(theme.MediaStopIcon())
	default:
		r.recordBtn.Enable()
		r.recordBtn.SetText("Record")
		r.recordBtn.SetIcon(theme.MediaRecordIcon())
	}
}

func (a *ravemixApp) toggleRecording(r *recordTab) {
	lib := a.core.Library
	recording := lib.Recorder().Status().State == recorder.Recording
	a.safeGo("record.toggle", func() {
		if recording {
			if _, err := lib.StopRecording(a.ctx); err != nil {
				a.showError(err)
			}
			return
		}
		if err := lib.StartRecording(a.ctx); err != nil {
			a.showError(err)
		}
	})
}

func (a *ravemixApp) confirmDelete() {
	cur, ok := a.core.Selection.Get()
	if !ok {
		return
	}
	msg := fmt.Sprintf("Delete %q?", cur.DisplayName())
	dialog.ShowConfirm("Delete audio", msg, func(confirmed bool) {
		if !confirmed {
			return
		}
		a.safeGo("record.delete", func() {
			if _, err := a.core.Library.DeleteCurrent(a.ctx); err != nil {
				a.showError(err)
			}
		})
	}, a.window)
}

func (a *ravemixApp) showImportPicker() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			a.showError(err)
			return
		}
		if reader == nil {
			return
		}
		uri := reader.URI()
		name := pickName(uri.Name(), uri.Extension())
		mimeType := pickType(uri.Name(), uri.MimeType())
		a.safeGo("record.import", func() {
			defer reader.Close()
			if _, _, err := a.core.Library.ImportFrom(a.ctx, reader, name, mimeType); err != nil {
				a.showError(err)
			}
		})
	}, a.window)
	fd.SetFilter(storage.NewExtensionFileFilter(catalog.AudioExtensions()))
	fd.Resize(fyne.NewSize(800, 600))
	fd.Show()
}

func setEnabled(b *widget.Button, on bool) {
	if on {
		b.Enable()
	} else {
		b.Disable()
	}
}
