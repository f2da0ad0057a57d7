package ui

import (
	"fmt"
	"time"

	"github.com/ovallesco/attendly/internal/api"
	"github.com/ovallesco/attendly/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// History is the attendance history tab: one month at a time, the server's
// monthly summary on top and the day records below. Every month change is a
// fresh fetch; nothing is cached across navigations.
type History struct {
	window fyne.Window
	client *api.Client

	selectedMonth time.Time
	generation    int // discards responses from months navigated away from

	monthLabel *widget.Label
	content    *fyne.Container

	// Kept for the PDF export of the month on display.
	summary *models.MonthlySummary
	records []models.AttendanceRecord
}

func NewHistory(w fyne.Window, client *api.Client) *History {
	return &History{window: w, client: client}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func (h *History) MakeUI() fyne.CanvasObject {
	h.selectedMonth = monthStart(time.Now())
	h.monthLabel = widget.NewLabel("")
	h.content = container.NewStack()

	toolbar := container.NewHBox(
		widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() {
			h.selectedMonth = h.selectedMonth.AddDate(0, -1, 0)
			h.Reload()
		}),
		widget.NewButton("This Month", func() {
			h.selectedMonth = monthStart(time.Now())
			h.Reload()
		}),
		widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() {
			h.selectedMonth = h.selectedMonth.AddDate(0, 1, 0)
			h.Reload()
		}),
		layout.NewSpacer(),
		h.monthLabel,
		layout.NewSpacer(),
		widget.NewButtonWithIcon("Export PDF", theme.DocumentSaveIcon(), func() {
			h.exportPDF()
		}),
	)

	h.Reload()

	return container.NewBorder(toolbar, nil, nil, nil, h.content)
}

// Reload fetches the summary and records for the selected month.
func (h *History) Reload() {
	h.generation++
	gen := h.generation
	month := h.selectedMonth

	h.monthLabel.SetText(month.Format("January 2006"))
	h.content.Objects = []fyne.CanvasObject{widget.NewProgressBarInfinite()}
	h.content.Refresh()

	end := month.AddDate(0, 1, -1)
	filters := models.RecordFilters{
		StartDate: month.Format("2006-01-02"),
		EndDate:   end.Format("2006-01-02"),
	}

	go func() {
		summary, sumErr := h.client.MonthlySummary(int(month.Month()), month.Year())
		var records []models.AttendanceRecord
		var recErr error
		if sumErr == nil {
			records, recErr = h.client.MyRecords(filters)
		}

		fyne.Do(func() {
			if gen != h.generation {
				return // user has moved to another month
			}
			if sumErr != nil || recErr != nil {
				err := sumErr
				if err == nil {
					err = recErr
				}
				h.showError(err)
				return
			}
			h.summary = summary
			h.records = records
			h.content.Objects = []fyne.CanvasObject{h.render(summary, records)}
			h.content.Refresh()
		})
	}()
}

// showError renders the failure with an inline retry control.
func (h *History) showError(err error) {
	msg := widget.NewLabel("Could not load attendance: " + err.Error())
	msg.Wrapping = fyne.TextWrapWord
	retry := widget.NewButtonWithIcon("Retry", theme.ViewRefreshIcon(), func() {
		h.Reload()
	})
	h.content.Objects = []fyne.CanvasObject{container.NewVBox(msg, container.NewHBox(layout.NewSpacer(), retry, layout.NewSpacer()))}
	h.content.Refresh()
}

func (h *History) render(summary *models.MonthlySummary, records []models.AttendanceRecord) fyne.CanvasObject {
	summaryText := fmt.Sprintf(
		"Days worked: %d    Total: %s    Average: %s\nOn time: %d    Late: %d    Half day: %d    Short day: %d",
		summary.DaysWorked, summary.TotalHoursLabel, summary.AverageHoursLabel,
		summary.OnTimeCount, summary.LateCount, summary.HalfDayCount, summary.ShortDayCount,
	)
	summaryLabel := widget.NewLabel(summaryText)

	if len(records) == 0 {
		return container.NewVBox(
			summaryLabel,
			widget.NewSeparator(),
			widget.NewLabel("No records for this month."),
		)
	}

	listView := widget.NewList(
		func() int { return len(records) },
		func() fyne.CanvasObject {
			return container.NewBorder(nil, nil, nil,
				container.NewHBox(widget.NewLabel("0h"), widget.NewLabel("status")),
				container.NewVBox(
					widget.NewLabelWithStyle("Date", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
					widget.NewLabelWithStyle("Times", fyne.TextAlignLeading, fyne.TextStyle{Italic: true}),
				))
		},
		func(i int, o fyne.CanvasObject) {
			rec := records[len(records)-1-i] // newest first

			box := o.(*fyne.Container)
			rightBox := box.Objects[1].(*fyne.Container)
			durLabel := rightBox.Objects[0].(*widget.Label)
			statusLabel := rightBox.Objects[1].(*widget.Label)

			infoBox := box.Objects[0].(*fyne.Container)
			dateLabel := infoBox.Objects[0].(*widget.Label)
			timesLabel := infoBox.Objects[1].(*widget.Label)

			dateLabel.SetText(recordDate(rec))
			timesLabel.SetText(recordTimes(rec))
			durLabel.SetText(models.FormatWorked(rec.WorkedDuration(time.Now())))
			statusLabel.SetText(rec.AttendanceStatus)
		},
	)

	return container.NewBorder(
		container.NewVBox(summaryLabel, widget.NewSeparator()),
		nil, nil, nil,
		listView,
	)
}

func recordDate(rec models.AttendanceRecord) string {
	if rec.Date != "" {
		if t, err := time.Parse("2006-01-02", rec.Date); err == nil {
			return t.Format("Mon, 02 Jan 2006")
		}
		return rec.Date
	}
	if rec.LoginTime != nil {
		return rec.LoginTime.Local().Format("Mon, 02 Jan 2006")
	}
	return ""
}

func recordTimes(rec models.AttendanceRecord) string {
	in := "—"
	out := "—"
	if rec.LoginTime != nil {
		in = rec.LoginTime.Local().Format("15:04")
	}
	if rec.LogoutTime != nil {
		out = rec.LogoutTime.Local().Format("15:04")
	}
	return in + " – " + out
}

func (h *History) exportPDF() {
	if h.summary == nil {
		return
	}
	month := h.selectedMonth
	summary := h.summary
	records := h.records

	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, h.window)
			return
		}
		if writer == nil {
			return
		}
		path := writer.URI().Path()
		writer.Close()
		go func() {
			genErr := GenerateMonthlyPDF(path, month, summary, records)
			fyne.Do(func() {
				if genErr != nil {
					dialog.ShowError(genErr, h.window)
					return
				}
				showInfo(h.window, "Export complete", "Report saved to "+path)
			})
		}()
	}, h.window)
	fd.SetFileName(fmt.Sprintf("attendance-%s.pdf", month.Format("2006-01")))
	fd.Show()
}
