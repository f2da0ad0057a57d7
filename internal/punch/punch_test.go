package punch

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/ovallesco/attendly/internal/api"
	"github.com/ovallesco/attendly/internal/camera"
	"github.com/ovallesco/attendly/internal/geo"
	"github.com/ovallesco/attendly/internal/models"
)

type fakeDevice struct {
	mu      sync.Mutex
	openErr error
	active  int
	maxLive int
}

func (d *fakeDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return d.openErr
	}
	d.active++
	if d.active > d.maxLive {
		d.maxLive = d.active
	}
	return nil
}

func (d *fakeDevice) Frame() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	return img, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active--
	return nil
}

func (d *fakeDevice) liveStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

type fakeClient struct {
	mu         sync.Mutex
	punches    int
	todayCalls int

	punchErr error
	record   *models.AttendanceRecord
	today    *models.AttendanceRecord
	payload  models.PunchPayload

	entered chan struct{} // closed when a punch call starts, if set
	release chan struct{} // punch call blocks on this, if set
}

func (c *fakeClient) punch(p models.PunchPayload) (*models.AttendanceRecord, error) {
	c.mu.Lock()
	c.punches++
	c.payload = p
	entered, release := c.entered, c.release
	c.mu.Unlock()

	if entered != nil {
		close(entered)
		c.mu.Lock()
		c.entered = nil
		c.mu.Unlock()
	}
	if release != nil {
		<-release
	}
	if c.punchErr != nil {
		return nil, c.punchErr
	}
	return c.record, nil
}

func (c *fakeClient) PunchIn(p models.PunchPayload, _ string) (*models.AttendanceRecord, error) {
	return c.punch(p)
}

func (c *fakeClient) PunchOut(p models.PunchPayload, _ string) (*models.AttendanceRecord, error) {
	return c.punch(p)
}

func (c *fakeClient) Today() (*models.AttendanceRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.todayCalls++
	return c.today, nil
}

func (c *fakeClient) punchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.punches
}

func loginAt(t time.Time) *models.AttendanceRecord {
	return &models.AttendanceRecord{LoginTime: &t}
}

func newAttempt(kind Kind, client Client, dev camera.Device, p geo.Positioner) *Attempt {
	return NewAttempt(kind, client, camera.New(dev), geo.NewResolver(p, ""), "")
}

func TestCameraDenialBlocksSubmission(t *testing.T) {
	client := &fakeClient{}
	a := newAttempt(KindIn, client, &fakeDevice{openErr: camera.ErrPermissionDenied}, nil)

	if err := a.Start(); !errors.Is(err, camera.ErrPermissionDenied) {
		t.Fatalf("start err = %v, want permission denied", err)
	}
	if _, err := a.Confirm(); err == nil {
		t.Fatalf("confirm without a photo must fail")
	}
	if client.punchCount() != 0 {
		t.Fatalf("no network call may happen when the camera was denied")
	}
	a.Close()
}

func TestSuccessfulPunchIn(t *testing.T) {
	rec := loginAt(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	client := &fakeClient{record: rec}
	dev := &fakeDevice{}
	a := newAttempt(KindIn, client, dev, geo.Fixed{Lat: 4.6097, Lon: -74.0817})

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.TakePhoto(); err != nil {
		t.Fatalf("take photo: %v", err)
	}
	if dev.liveStreams() != 0 {
		t.Fatalf("camera must be released after a successful capture")
	}
	a.LocationDone() // make the location deterministic for the assertion

	res, err := a.Confirm()
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Conflict {
		t.Fatalf("unexpected conflict")
	}
	if !res.Record.CheckedIn() {
		t.Fatalf("expected a checked-in record back")
	}
	if a.State() != StateSettled {
		t.Fatalf("state = %v, want settled", a.State())
	}

	client.mu.Lock()
	payload := client.payload
	client.mu.Unlock()
	if payload.Photo == "" {
		t.Fatalf("payload must carry the photo")
	}
	if _, err := base64.StdEncoding.DecodeString(payload.Photo); err != nil {
		t.Fatalf("photo is not valid base64: %v", err)
	}
	if payload.Latitude == nil || *payload.Latitude != 4.6097 {
		t.Fatalf("payload coordinates = %+v", payload)
	}
}

func TestGeocodeFailureDoesNotBlockSubmission(t *testing.T) {
	client := &fakeClient{record: loginAt(time.Now())}
	// A geocode endpoint that cannot be reached: the resolver must fall
	// back to the coordinate string.
	resolver := geo.NewResolver(geo.Fixed{Lat: 1, Lon: 2}, "http://127.0.0.1:1")
	a := NewAttempt(KindIn, client, camera.New(&fakeDevice{}), resolver, "")

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.TakePhoto(); err != nil {
		t.Fatalf("take photo: %v", err)
	}
	a.LocationDone()

	if _, err := a.Confirm(); err != nil {
		t.Fatalf("confirm must succeed despite geocode failure: %v", err)
	}
	client.mu.Lock()
	addr := client.payload.Address
	client.mu.Unlock()
	if addr != "1.000000, 2.000000" {
		t.Fatalf("address = %q, want coordinate fallback", addr)
	}
}

func TestConflictReconciliation(t *testing.T) {
	serverTruth := loginAt(time.Date(2025, 3, 10, 8, 55, 0, 0, time.UTC))
	client := &fakeClient{
		punchErr: &api.Error{Kind: api.KindConflict, Message: "already punched in"},
		today:    serverTruth,
	}
	a := newAttempt(KindIn, client, &fakeDevice{}, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.TakePhoto(); err != nil {
		t.Fatalf("take photo: %v", err)
	}

	res, err := a.Confirm()
	if err != nil {
		t.Fatalf("conflict must settle as a warning, got error %v", err)
	}
	if !res.Conflict {
		t.Fatalf("expected conflict flag")
	}
	if !res.Record.CheckedIn() {
		t.Fatalf("reconciled record must reflect the server's state")
	}
	if client.todayCalls != 1 {
		t.Fatalf("today re-fetched %d times, want 1", client.todayCalls)
	}
}

func TestFailureKeepsAttemptRetryable(t *testing.T) {
	client := &fakeClient{punchErr: &api.Error{Kind: api.KindRejected, Message: "server busy"}}
	a := newAttempt(KindOut, client, &fakeDevice{}, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.TakePhoto(); err != nil {
		t.Fatalf("take photo: %v", err)
	}
	if _, err := a.Confirm(); err == nil {
		t.Fatalf("expected submission failure")
	}
	if a.State() != StateReadyToConfirm {
		t.Fatalf("state after failure = %v, want ready-to-confirm", a.State())
	}

	client.mu.Lock()
	client.punchErr = nil
	client.record = loginAt(time.Now())
	client.mu.Unlock()
	if _, err := a.Confirm(); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestAtMostOneInFlightSubmission(t *testing.T) {
	client := &fakeClient{
		record:  loginAt(time.Now()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	a := newAttempt(KindIn, client, &fakeDevice{}, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.TakePhoto(); err != nil {
		t.Fatalf("take photo: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := a.Confirm()
		done <- err
	}()
	<-client.entered

	if _, err := a.Confirm(); err != ErrBusy {
		t.Fatalf("second confirm = %v, want ErrBusy", err)
	}
	close(client.release)
	if err := <-done; err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if client.punchCount() != 1 {
		t.Fatalf("%d network calls, want exactly 1", client.punchCount())
	}
}

func TestRetakeReacquiresSingleStream(t *testing.T) {
	dev := &fakeDevice{}
	a := newAttempt(KindIn, &fakeClient{record: loginAt(time.Now())}, dev, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.TakePhoto(); err != nil {
		t.Fatalf("take photo: %v", err)
	}
	if err := a.Retake(); err != nil {
		t.Fatalf("retake: %v", err)
	}
	if a.State() != StateCapturing {
		t.Fatalf("state after retake = %v, want capturing", a.State())
	}
	if a.Photo() != nil {
		t.Fatalf("retake must discard the previous photo")
	}
	a.Close()

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.maxLive > 1 {
		t.Fatalf("%d live streams at once, want at most 1", dev.maxLive)
	}
	if dev.active != 0 {
		t.Fatalf("%d streams still open after close", dev.active)
	}
}

func TestCloseReleasesCameraMidCapture(t *testing.T) {
	dev := &fakeDevice{}
	a := newAttempt(KindIn, &fakeClient{}, dev, nil)

	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	a.Close()
	a.Close() // safe to repeat
	if dev.liveStreams() != 0 {
		t.Fatalf("closing the attempt must release the camera")
	}
	if a.State() != StateSettled {
		t.Fatalf("state = %v, want settled", a.State())
	}
}
