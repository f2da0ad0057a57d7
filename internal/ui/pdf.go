package ui

import (
	"fmt"
	"time"

	"github.com/ovallesco/attendly/internal/models"

	"fyne.io/fyne/v2/lang"
	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"
)

// GenerateMonthlyPDF writes one month of attendance to a PDF report.
func GenerateMonthlyPDF(path string, month time.Time, summary *models.MonthlySummary, records []models.AttendanceRecord) error {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(lang.L("Attendance Report"), props.Text{
					Top:   3,
					Style: consts.Bold,
					Align: consts.Center,
					Size:  16,
				})
			})
		})
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(month.Format("January 2006"), props.Text{
					Top:   3,
					Style: consts.Normal,
					Align: consts.Center,
					Size:  12,
				})
			})
		})
	})

	m.Row(10, func() {
		m.Col(12, func() {
			m.Text(fmt.Sprintf("%s: %d   %s: %s   %s: %s",
				lang.L("Days worked"), summary.DaysWorked,
				lang.L("Total"), summary.TotalHoursLabel,
				lang.L("Average"), summary.AverageHoursLabel), props.Text{
				Top:  5,
				Size: 11,
			})
		})
	})
	m.Row(10, func() {
		m.Col(12, func() {
			m.Text(fmt.Sprintf("%s: %d   %s: %d   %s: %d   %s: %d",
				lang.L("On time"), summary.OnTimeCount,
				lang.L("Late"), summary.LateCount,
				lang.L("Half day"), summary.HalfDayCount,
				lang.L("Short day"), summary.ShortDayCount), props.Text{
				Top:  2,
				Size: 11,
			})
		})
	})

	headers := []string{
		lang.L("Date"),
		lang.L("In"),
		lang.L("Out"),
		lang.L("Hours"),
		lang.L("Status"),
	}
	rows := [][]string{}
	for _, rec := range records {
		in, out := "—", "—"
		if rec.LoginTime != nil {
			in = rec.LoginTime.Local().Format("15:04")
		}
		if rec.LogoutTime != nil {
			out = rec.LogoutTime.Local().Format("15:04")
		}
		rows = append(rows, []string{
			recordDate(rec),
			in,
			out,
			models.FormatWorked(rec.WorkedDuration(time.Now())),
			rec.AttendanceStatus,
		})
	}

	m.TableList(headers, rows, props.TableList{
		HeaderProp: props.TableListContent{
			Size:      10,
			GridSizes: []uint{4, 2, 2, 2, 2},
		},
		ContentProp: props.TableListContent{
			Size:      10,
			GridSizes: []uint{4, 2, 2, 2, 2},
		},
		Align:                consts.Center,
		AlternatedBackground: &color.Color{Red: 240, Green: 240, Blue: 240},
		HeaderContentSpace:   1,
		Line:                 false,
	})

	return m.OutputFileAndClose(path)
}
