package models

import (
	"fmt"
	"time"
)

// Attendance status values as classified by the backend. The client only
// displays these, it never computes them.
const (
	StatusOnTime  = "on-time"
	StatusLate    = "late"
	StatusHalfDay = "half-day"
)

// AttendanceRecord is one calendar day's attendance for an employee. It is
// owned by the backend: created on first punch-in, updated on punch-out, and
// read-only to this client.
type AttendanceRecord struct {
	ID               string     `json:"id,omitempty"`
	UserID           string     `json:"userId,omitempty"`
	UserName         string     `json:"userName,omitempty"`
	Date             string     `json:"date,omitempty"`
	LoginTime        *time.Time `json:"loginTime"`
	LogoutTime       *time.Time `json:"logoutTime"`
	AttendanceStatus string     `json:"attendanceStatus,omitempty"`
	Address          string     `json:"address,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// CheckedIn reports whether the record has an open punch (logged in, not yet
// logged out). A nil record means no punch today.
func (r *AttendanceRecord) CheckedIn() bool {
	return r != nil && r.LoginTime != nil && r.LogoutTime == nil
}

// CheckedOut reports whether the record is closed for the day.
func (r *AttendanceRecord) CheckedOut() bool {
	return r != nil && r.LogoutTime != nil
}

// WorkedDuration returns logout minus login, or now minus login while the
// record is still open. Zero when there is no login yet.
func (r *AttendanceRecord) WorkedDuration(now time.Time) time.Duration {
	if r == nil || r.LoginTime == nil {
		return 0
	}
	end := now
	if r.LogoutTime != nil {
		end = *r.LogoutTime
	}
	if end.Before(*r.LoginTime) {
		return 0
	}
	return end.Sub(*r.LoginTime)
}

// PunchPayload is the body of a punch-in or punch-out request. It is built
// fresh for every punch attempt and discarded once submission settles.
type PunchPayload struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	Photo     string   `json:"photo,omitempty"` // base64-encoded JPEG
	Notes     string   `json:"notes,omitempty"`
}

// MonthlySummary aggregates one (month, year) of attendance for the signed-in
// employee. Computed server-side; a month with no records is all zero values.
type MonthlySummary struct {
	DaysWorked        int    `json:"daysWorked"`
	TotalHoursLabel   string `json:"totalHoursLabel"`
	AverageHoursLabel string `json:"averageHoursLabel"`
	OnTimeCount       int    `json:"onTimeCount"`
	LateCount         int    `json:"lateCount"`
	HalfDayCount      int    `json:"halfDayCount"`
	ShortDayCount     int    `json:"shortDayCount"`
}

// TeamMemberSummary is one row of the admin team summary.
type TeamMemberSummary struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	MonthlySummary
}

// RecordFilters narrows the record listing endpoints. Zero values are
// omitted from the query.
type RecordFilters struct {
	UserID    string
	StartDate string // 2006-01-02
	EndDate   string
	Status    string
}

// FormatWorked renders a worked duration as "8h 29m", truncated to whole
// minutes. Zero renders as "0h".
func FormatWorked(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int(d.Minutes())
	h := mins / 60
	m := mins % 60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
