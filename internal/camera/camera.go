// Package camera acquires a camera stream and produces the punch selfie.
// The live preview is shown mirrored for a natural selfie experience; the
// stored still is flipped back so text and badges read correctly.
package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/disintegration/imaging"
)

var (
	// ErrPermissionDenied means the camera source refused access. The punch
	// flow cannot proceed without a photo, so callers surface this.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrDeviceUnavailable means no camera hardware or source responded.
	ErrDeviceUnavailable = errors.New("camera unavailable")
	// ErrNoStream means capture was requested with no open stream.
	ErrNoStream = errors.New("no active camera stream")
)

// jpegQuality matches the source capture quality of 0.9.
const jpegQuality = 90

// Device is a raw video source. Open acquires the stream exclusively, Frame
// returns the current frame at the stream's native resolution, and Close
// releases the stream. Close must be idempotent.
type Device interface {
	Open() error
	Frame() (image.Image, error)
	Close() error
}

// Still is one captured photo: the mirror-corrected image plus its JPEG
// encoding.
type Still struct {
	Image image.Image
	JPEG  []byte
}

// Capture owns at most one open stream on its device and produces
// mirror-corrected stills from it. All methods are safe for concurrent use.
type Capture struct {
	dev Device

	mu   sync.Mutex
	open bool
}

// New wraps a device. The stream is not acquired until Open.
func New(dev Device) *Capture {
	return &Capture{dev: dev}
}

// Open acquires the camera stream. Opening an already-open capture is an
// error: the caller must Close first (see Retake).
func (c *Capture) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return fmt.Errorf("camera stream already open")
	}
	if err := c.dev.Open(); err != nil {
		return err
	}
	c.open = true
	return nil
}

// Preview returns the current frame as the user sees it in the live preview,
// i.e. mirrored.
func (c *Capture) Preview() (image.Image, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil, ErrNoStream
	}
	c.mu.Unlock()

	// Frame can block on a stalled stream; the lock must not be held across
	// it or Close would block behind the read.
	frame, err := c.dev.Frame()
	if err != nil {
		return nil, err
	}
	return imaging.FlipH(frame), nil
}

// Take captures one still from the current frame. The stored image is
// horizontally flipped relative to the preview so it reads correctly, and
// encoded as JPEG. The stream stays open; the caller decides when to Close.
func (c *Capture) Take() (*Still, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil, ErrNoStream
	}
	c.mu.Unlock()

	frame, err := c.dev.Frame()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return &Still{Image: frame, JPEG: buf.Bytes()}, nil
}

// Retake releases the current stream and acquires a fresh one. The close
// completes before the reopen is issued, so two streams are never active at
// once.
func (c *Capture) Retake() error {
	if err := c.Close(); err != nil {
		return err
	}
	return c.Open()
}

// Close releases the stream. Idempotent: closing an already-closed capture
// is a no-op.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	c.open = false
	return c.dev.Close()
}
