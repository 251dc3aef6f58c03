package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/naming"
)

// serveNames shows a dialog for every naming request until the app exits.
func (a *ravemixApp) serveNames() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case req := <-a.core.Names.Requests():
			a.safeDo("naming.dialog", func() { a.showNameDialog(req) })
		}
	}
}

// showNameDialog stays open until a name is accepted or the user cancels.
// A rejected name shows the reason under the field.
func (a *ravemixApp) showNameDialog(req *naming.Request) {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("Recording name")
	reason := widget.NewLabel("")
	reason.Importance = widget.DangerImportance
	reason.Hide()

	d := dialog.NewCustomWithoutButtons(req.Title, container.NewVBox(entry, reason), a.window)
	submit := func() {
		if err := req.Submit(entry.Text); err != nil {
			reason.SetText(apperrors.PublicMessage(err))
			reason.Show()
			return
		}
		d.Hide()
	}
	entry.OnSubmitted = func(string) { submit() }

	save := widget.NewButton("Save", submit)
	save.Importance = widget.HighImportance
	cancel := widget.NewButton("Cancel", func() {
		req.Cancel()
		d.Hide()
	})
	d.SetButtons([]fyne.CanvasObject{cancel, save})
	d.Resize(fyne.NewSize(320, 180))
	d.Show()
	a.window.Canvas().Focus(entry)

	a.safeGo("naming.watch", func() {
		<-req.Done()
		a.safeDo("naming.close", d.Hide)
	})
}
