package ui

import (
	"fmt"
	"time"

	"github.com/ovallesco/attendly/internal/api"
	"github.com/ovallesco/attendly/internal/config"
	"github.com/ovallesco/attendly/internal/models"
	"github.com/ovallesco/attendly/internal/punch"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// Dashboard is the "Today" tab: current punch status, the live elapsed
// timer, and the punch action. Everything shown here is server-confirmed
// state; the view only changes after a successful round-trip and re-fetch.
type Dashboard struct {
	window fyne.Window
	client *api.Client
	cfg    config.Config

	statusData binding.String
	timerData  binding.String
	detailData binding.String

	today    *models.AttendanceRecord
	punchBtn *widget.Button

	// OnPunched runs after a punch settles, so sibling views can refresh.
	OnPunched func(kind punch.Kind)
}

func NewDashboard(w fyne.Window, client *api.Client, cfg config.Config) *Dashboard {
	return &Dashboard{
		window:     w,
		client:     client,
		cfg:        cfg,
		statusData: binding.NewString(),
		timerData:  binding.NewString(),
		detailData: binding.NewString(),
	}
}

func (d *Dashboard) MakeUI() fyne.CanvasObject {
	d.statusData.Set("Loading…")
	d.timerData.Set("0h")

	statusLabel := widget.NewLabelWithData(d.statusData)
	statusLabel.TextStyle = fyne.TextStyle{Bold: true}
	statusLabel.Alignment = fyne.TextAlignCenter

	timerLabel := widget.NewLabelWithData(d.timerData)
	timerLabel.Alignment = fyne.TextAlignCenter

	detailLabel := widget.NewLabelWithData(d.detailData)
	detailLabel.Alignment = fyne.TextAlignCenter

	d.punchBtn = widget.NewButtonWithIcon("Punch In", theme.MediaPlayIcon(), func() {
		d.Punch()
	})
	d.punchBtn.Disable() // until today's record is known

	refreshBtn := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() {
		d.Refresh()
	})

	// Ticker
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		for range ticker.C {
			fyne.Do(func() {
				if d.today.CheckedIn() {
					d.timerData.Set(models.FormatWorked(d.today.WorkedDuration(time.Now())))
				}
			})
		}
	}()

	d.Refresh()

	return container.NewVBox(
		layout.NewSpacer(),
		statusLabel,
		timerLabel,
		detailLabel,
		container.NewHBox(layout.NewSpacer(), d.punchBtn, refreshBtn, layout.NewSpacer()),
		layout.NewSpacer(),
	)
}

// Refresh re-fetches today's record and re-renders.
func (d *Dashboard) Refresh() {
	go func() {
		rec, err := d.client.Today()
		fyne.Do(func() {
			if api.IsSessionExpired(err) {
				d.statusData.Set("Signed out")
				d.timerData.Set("")
				d.detailData.Set("Sign in from the Config tab to record attendance.")
				d.punchBtn.Disable()
				return
			}
			if err != nil {
				d.statusData.Set("Could not load today's attendance")
				d.detailData.Set(err.Error())
				return
			}
			d.setToday(rec)
		})
	}()
}

// setToday renders a server-confirmed record. Must run on the UI loop.
func (d *Dashboard) setToday(rec *models.AttendanceRecord) {
	d.today = rec
	switch {
	case rec.CheckedIn():
		d.statusData.Set("Checked In")
		d.timerData.Set(models.FormatWorked(rec.WorkedDuration(time.Now())))
		d.detailData.Set(fmt.Sprintf("In since %s%s", rec.LoginTime.Local().Format("15:04"), statusSuffix(rec)))
		d.punchBtn.SetText("Punch Out")
		d.punchBtn.SetIcon(theme.MediaStopIcon())
		d.punchBtn.Enable()
	case rec.CheckedOut():
		d.statusData.Set("Checked Out")
		d.timerData.Set(models.FormatWorked(rec.WorkedDuration(time.Now())))
		d.detailData.Set(fmt.Sprintf("%s – %s%s",
			rec.LoginTime.Local().Format("15:04"),
			rec.LogoutTime.Local().Format("15:04"),
			statusSuffix(rec)))
		d.punchBtn.SetText("Done for today")
		d.punchBtn.SetIcon(theme.ConfirmIcon())
		d.punchBtn.Disable()
	default:
		d.statusData.Set("Not Checked In")
		d.timerData.Set("0h")
		d.detailData.Set("")
		d.punchBtn.SetText("Punch In")
		d.punchBtn.SetIcon(theme.MediaPlayIcon())
		d.punchBtn.Enable()
	}
}

func statusSuffix(rec *models.AttendanceRecord) string {
	if rec.AttendanceStatus == "" {
		return ""
	}
	return " · " + rec.AttendanceStatus
}

// Punch opens the capture dialog for the direction the current state allows.
func (d *Dashboard) Punch() {
	kind := punch.KindIn
	if d.today.CheckedIn() {
		kind = punch.KindOut
	} else if d.today.CheckedOut() {
		return
	}
	ShowPunchDialog(d.window, kind, d.client, d.cfg, func(rec *models.AttendanceRecord, conflict bool) {
		// Present only re-fetched, server-confirmed state.
		d.Refresh()
		if conflict {
			showInfo(d.window, "Attendance out of sync",
				"The server already had a punch recorded. The view has been updated to match.")
		}
		if d.OnPunched != nil {
			d.OnPunched(kind)
		}
	})
}
