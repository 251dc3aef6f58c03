package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/workflow"
)

// sendTab picks a model, sends the selection and previews the result.
type sendTab struct {
	content fyne.CanvasObject
	enter   func()

	syncing  bool
	models   *widget.Select
	source   *widget.Label
	result   *widget.Label
	notice   *widget.Label
	busy     *widget.ProgressBarInfinite
	progress *widget.ProgressBar
	raveBtn  *widget.Button
	playBtn  *widget.Button
}

func (a *ravemixApp) buildSend() *sendTab {
	s := &sendTab{}
	sender := a.core.Sender

	s.models = widget.NewSelect(nil, func(id string) {
		if s.syncing || id == "" {
			return
		}
		a.safeGo("send.model", func() {
			if err := sender.ChooseModel(a.ctx, id); err != nil {
				a.showError(err)
			}
		})
	})
	s.models.PlaceHolder = "No models"
	s.source = widget.NewLabel("")
	s.result = widget.NewLabel("")
	s.notice = widget.NewLabel("")
	s.notice.Wrapping = fyne.TextWrapWord
	s.notice.Hide()
	s.busy = widget.NewProgressBarInfinite()
	s.busy.Stop()
	s.busy.Hide()
	s.progress = widget.NewProgressBar()
	s.progress.TextFormatter = func() string { return "" }

	s.raveBtn = widget.NewButtonWithIcon("Rave", theme.UploadIcon(), func() {
		a.safeGo("send.rave", func() {
			if _, err := sender.Rave(a.ctx); err != nil {
				a.showError(err)
			}
		})
	})
	s.raveBtn.Importance = widget.HighImportance
	s.playBtn = widget.NewButtonWithIcon("Play", theme.MediaPlayIcon(), func() {
		a.safeGo("send.play", func() {
			if err := sender.Play(a.ctx); err != nil {
				a.showError(err)
			}
		})
	})

	sender.Subscribe(func(st workflow.SenderState) {
		a.safeDo("send.state", func() { s.showState(a, st) })
	})
	a.core.Selection.Subscribe(func(catalog.Entry, bool) {
		a.safeDo("send.selection", func() { s.showState(a, sender.State()) })
	})
	a.core.Player.Subscribe(func(p float64) {
		a.safeDo("send.progress", func() { s.progress.SetValue(p) })
	})

	s.enter = func() {
		s.showState(a, sender.State())
		a.safeGo("send.models", func() {
			_, err := sender.LoadModels(a.ctx)
			a.safeDo("send.models.ui", func() {
				if err != nil && !apperrors.IsCancelled(err) {
					s.notice.SetText("Could not load models: " + apperrors.PublicMessage(err))
					s.notice.Show()
					return
				}
				s.notice.Hide()
			})
		})
	}

	form := widget.NewForm(
		widget.NewFormItem("Model", s.models),
		widget.NewFormItem("Source", s.source),
		widget.NewFormItem("Result", s.result),
	)
	s.content = container.NewVBox(
		form,
		s.notice,
		s.raveBtn,
		s.busy,
		container.NewBorder(nil, nil, s.playBtn, nil, s.progress),
	)
	s.showState(a, sender.State())
	return s
}

func (s *sendTab) showState(a *ravemixApp, st workflow.SenderState) {
	s.syncing = true
	s.models.Options = st.Models
	if st.Model != "" {
		s.models.SetSelected(st.Model)
	} else {
		s.models.ClearSelected()
	}
	s.models.Refresh()
	s.syncing = false

	cur, ok := a.core.Selection.Get()
	if ok {
		s.source.SetText(entryLabel(cur))
	} else {
		s.source.SetText("Nothing selected")
	}
	if st.Downloaded.IsZero() {
		s.result.SetText("-")
	} else {
		s.result.SetText(st.Downloaded.DisplayName())
	}

	if st.Busy {
		s.busy.Show()
		s.busy.Start()
	} else {
		s.busy.Stop()
		s.busy.Hide()
	}
	setEnabled(s.raveBtn, ok && !st.Busy)
	_, playable := a.core.Sender.Playable()
	setEnabled(s.playBtn, playable && !st.Busy)
}
