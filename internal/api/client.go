package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ovallesco/attendly/internal/models"
)

const requestTimeout = 15 * time.Second

// TokenSource supplies the current bearer credential, or "" when signed out.
type TokenSource func() string

// Client is a typed wrapper around the attendance REST API. It attaches the
// bearer credential on every request, unwraps the transport envelope so
// callers receive domain payloads directly, and normalizes every failure to
// *Error.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource

	// onSessionExpired runs once per 401, after the failing call returns.
	// The UI uses it to clear the stored session and flip to signed-out.
	onSessionExpired func()
}

// New builds a client for the given API base URL. token may be nil for an
// unauthenticated client; onSessionExpired may be nil.
func New(baseURL string, token TokenSource, onSessionExpired func()) *Client {
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		http:             &http.Client{Timeout: requestTimeout},
		token:            token,
		onSessionExpired: onSessionExpired,
	}
}

// envelope is the transport wrapper every endpoint responds with.
type envelope struct {
	Status  string          `json:"status"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Err     string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) errorMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err
}

// do performs one request and decodes the unwrapped payload into out.
// requestID, when set, is attached as X-Request-ID so the backend can
// de-duplicate a punch retried by the user.
func (c *Client) do(method, path string, query url.Values, requestID string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindRejected, Message: fmt.Sprintf("encode request: %v", err)}
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(method, u, reqBody)
	if err != nil {
		return &Error{Kind: KindRejected, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "network error"}
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if decodeErr == nil {
			msg = env.errorMessage()
		}
		if msg == "" {
			msg = "request failed"
		}
		kind := KindRejected
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			kind = KindSessionExpired
			if c.onSessionExpired != nil {
				defer c.onSessionExpired()
			}
		case resp.StatusCode == http.StatusConflict || conflictMessage(msg):
			kind = KindConflict
		}
		return &Error{Kind: kind, Message: msg, Status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return &Error{Kind: KindRejected, Message: "request failed", Status: resp.StatusCode}
	}
	raw := env.Data
	if len(raw) == 0 {
		// No envelope in use; the body was the payload itself.
		return nil
	}
	if string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindRejected, Message: "request failed", Status: resp.StatusCode}
	}
	return nil
}

// PunchIn submits a punch-in and returns the created attendance record.
func (c *Client) PunchIn(p models.PunchPayload, requestID string) (*models.AttendanceRecord, error) {
	var rec *models.AttendanceRecord
	if err := c.do(http.MethodPost, "/attendance/punch-in", nil, requestID, p, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// PunchOut submits a punch-out and returns the updated attendance record.
func (c *Client) PunchOut(p models.PunchPayload, requestID string) (*models.AttendanceRecord, error) {
	var rec *models.AttendanceRecord
	if err := c.do(http.MethodPatch, "/attendance/punch-out", nil, requestID, p, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Today fetches today's attendance record. A nil record with nil error means
// no punch has happened yet today.
func (c *Client) Today() (*models.AttendanceRecord, error) {
	var rec *models.AttendanceRecord
	if err := c.do(http.MethodGet, "/attendance/today", nil, "", nil, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// MonthlySummary fetches the aggregate for one month. month is 1-12.
func (c *Client) MonthlySummary(month, year int) (*models.MonthlySummary, error) {
	if month < 1 || month > 12 {
		return nil, &Error{Kind: KindRejected, Message: fmt.Sprintf("month out of range: %d", month)}
	}
	q := url.Values{}
	q.Set("month", strconv.Itoa(month))
	q.Set("year", strconv.Itoa(year))
	var sum models.MonthlySummary
	if err := c.do(http.MethodGet, "/attendance/monthly-summary", q, "", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// MyRecords lists the signed-in employee's records, newest first per the
// backend's ordering.
func (c *Client) MyRecords(f models.RecordFilters) ([]models.AttendanceRecord, error) {
	var recs []models.AttendanceRecord
	if err := c.do(http.MethodGet, "/attendance/my-records", filterQuery(f), "", nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// AllRecords lists records across employees. Admin only.
func (c *Client) AllRecords(f models.RecordFilters) ([]models.AttendanceRecord, error) {
	var recs []models.AttendanceRecord
	if err := c.do(http.MethodGet, "/attendance/all", filterQuery(f), "", nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// TeamSummary fetches per-employee monthly aggregates. Admin only.
func (c *Client) TeamSummary(month, year int) ([]models.TeamMemberSummary, error) {
	if month < 1 || month > 12 {
		return nil, &Error{Kind: KindRejected, Message: fmt.Sprintf("month out of range: %d", month)}
	}
	q := url.Values{}
	q.Set("month", strconv.Itoa(month))
	q.Set("year", strconv.Itoa(year))
	var rows []models.TeamMemberSummary
	if err := c.do(http.MethodGet, "/attendance/team-summary", q, "", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func filterQuery(f models.RecordFilters) url.Values {
	q := url.Values{}
	if f.UserID != "" {
		q.Set("userId", f.UserID)
	}
	if f.StartDate != "" {
		q.Set("startDate", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("endDate", f.EndDate)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	return q
}
