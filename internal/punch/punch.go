// Package punch drives one punch-in or punch-out attempt from capture to
// settlement. An attempt coordinates two device resources (the camera stream
// and the location resolution) with the attendance API, and guarantees the
// camera is released on every exit path.
package punch

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"

	"github.com/ovallesco/attendly/internal/api"
	"github.com/ovallesco/attendly/internal/camera"
	"github.com/ovallesco/attendly/internal/geo"
	"github.com/ovallesco/attendly/internal/models"
)

// Kind selects the punch direction.
type Kind string

const (
	KindIn  Kind = "in"
	KindOut Kind = "out"
)

// State is the position of an attempt in its lifecycle.
type State int

const (
	// StateIdle is before Start.
	StateIdle State = iota
	// StateCapturing has the camera open and the location resolving.
	StateCapturing
	// StateReadyToConfirm has a photo; the camera is released.
	StateReadyToConfirm
	// StateSubmitting has exactly one network call in flight.
	StateSubmitting
	// StateSettled is terminal: submitted, reconciled, or abandoned.
	StateSettled
)

// ErrBusy is returned by Confirm while a submission is already in flight.
var ErrBusy = errors.New("submission already in progress")

// Client is the slice of the attendance API an attempt needs.
type Client interface {
	PunchIn(p models.PunchPayload, requestID string) (*models.AttendanceRecord, error)
	PunchOut(p models.PunchPayload, requestID string) (*models.AttendanceRecord, error)
	Today() (*models.AttendanceRecord, error)
}

// Result settles an attempt. When Conflict is set, the server disagreed
// about the punch state and Record is the re-fetched truth; the caller
// presents a warning, not an error.
type Result struct {
	Record   *models.AttendanceRecord
	Conflict bool
}

// Attempt is one punch attempt. Its state machine is
// Idle -> Capturing -> ReadyToConfirm -> Submitting -> Settled; a failed
// submission returns to ReadyToConfirm so the user can retry. Methods are
// safe for concurrent use; Confirm blocks and should run off the UI loop.
type Attempt struct {
	kind      Kind
	client    Client
	camera    *camera.Capture
	resolver  *geo.Resolver
	requestID string
	notes     string

	mu    sync.Mutex
	state State
	still *camera.Still
}

// NewAttempt wires an attempt. notes is an optional passthrough recorded
// with the punch; there is no UI for it today.
func NewAttempt(kind Kind, client Client, cam *camera.Capture, resolver *geo.Resolver, notes string) *Attempt {
	return &Attempt{
		kind:      kind,
		client:    client,
		camera:    cam,
		resolver:  resolver,
		requestID: uuid.New().String(),
		notes:     notes,
	}
}

// State returns the current lifecycle position.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Photo returns the captured still image, or nil before capture.
func (a *Attempt) Photo() image.Image {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.still == nil {
		return nil
	}
	return a.still.Image
}

// Start opens the camera and kicks off location resolution concurrently.
// A camera failure is fatal to the attempt: the photo is mandatory, so the
// caller must surface the error and close. Location resolution keeps running
// in the background and is consulted at submit time.
func (a *Attempt) Start() error {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return fmt.Errorf("punch attempt already started")
	}
	a.mu.Unlock()

	// Resolve in parallel with camera acquisition; the result is picked up
	// by Peek at submit time or by LocationDone for the UI.
	go a.resolver.Resolve()

	if err := a.camera.Open(); err != nil {
		return err
	}

	a.mu.Lock()
	a.state = StateCapturing
	a.mu.Unlock()
	return nil
}

// Preview exposes the live camera preview while capturing.
func (a *Attempt) Preview() (image.Image, error) {
	return a.camera.Preview()
}

// LocationDone resolves the location, blocking until it is known. Intended
// for a background goroutine feeding the UI's location line.
func (a *Attempt) LocationDone() geo.Location {
	return a.resolver.Resolve()
}

// TakePhoto captures the still and releases the camera stream. The location
// may still be resolving; that never blocks readiness.
func (a *Attempt) TakePhoto() error {
	a.mu.Lock()
	if a.state != StateCapturing {
		a.mu.Unlock()
		return fmt.Errorf("no capture in progress")
	}
	a.mu.Unlock()

	still, err := a.camera.Take()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.still = still
	a.state = StateReadyToConfirm
	a.mu.Unlock()

	// Photo secured; the stream is no longer needed.
	return a.camera.Close()
}

// Retake discards the photo and reacquires the camera. The close always
// completes before the reopen is issued.
func (a *Attempt) Retake() error {
	a.mu.Lock()
	if a.state != StateReadyToConfirm {
		a.mu.Unlock()
		return fmt.Errorf("nothing to retake")
	}
	a.still = nil
	a.state = StateCapturing
	a.mu.Unlock()

	return a.camera.Retake()
}

// Confirm submits the punch. Exactly one submission runs per confirmation;
// a second Confirm while one is in flight returns ErrBusy. On success the
// attempt settles. On a punch-state conflict the attempt settles with the
// re-fetched record and Conflict set. On any other failure the attempt
// returns to ReadyToConfirm and the payload's prior state is untouched, so
// the caller's presented status never moves ahead of the server.
func (a *Attempt) Confirm() (*Result, error) {
	a.mu.Lock()
	switch a.state {
	case StateSubmitting:
		a.mu.Unlock()
		return nil, ErrBusy
	case StateReadyToConfirm:
		// proceed
	default:
		a.mu.Unlock()
		return nil, fmt.Errorf("no photo to submit")
	}
	a.state = StateSubmitting
	still := a.still
	a.mu.Unlock()

	payload := models.PunchPayload{
		Photo: base64.StdEncoding.EncodeToString(still.JPEG),
		Notes: a.notes,
	}
	// Location is best-effort: included if resolved by now, omitted if not.
	if loc, ok := a.resolver.Peek(); ok {
		payload.Latitude = loc.Latitude
		payload.Longitude = loc.Longitude
		payload.Address = loc.Address
	}

	rec, err := a.submit(payload)
	if err == nil {
		a.settle()
		return &Result{Record: rec}, nil
	}

	if api.IsConflict(err) {
		// Soft conflict: the server already holds the state this punch
		// tried to create. Reconcile by re-fetching the truth.
		today, fetchErr := a.client.Today()
		if fetchErr == nil {
			a.settle()
			return &Result{Record: today, Conflict: true}, nil
		}
		err = fetchErr
	}

	a.mu.Lock()
	a.state = StateReadyToConfirm
	a.mu.Unlock()
	return nil, err
}

func (a *Attempt) submit(payload models.PunchPayload) (*models.AttendanceRecord, error) {
	if a.kind == KindOut {
		return a.client.PunchOut(payload, a.requestID)
	}
	return a.client.PunchIn(payload, a.requestID)
}

func (a *Attempt) settle() {
	a.mu.Lock()
	a.state = StateSettled
	a.mu.Unlock()
	a.camera.Close()
}

// Close abandons the attempt and releases the camera. Safe to call in any
// state, any number of times; an in-flight submission is not cancelled, its
// result is simply discarded by the caller.
func (a *Attempt) Close() {
	a.mu.Lock()
	if a.state != StateSubmitting {
		a.state = StateSettled
	}
	a.mu.Unlock()
	a.camera.Close()
}
