package camera

import (
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

// MJPEG reads frames from an MJPEG-over-HTTP stream, the protocol spoken by
// IP webcams and phone camera apps. The requested resolution is whatever the
// stream URL is configured for; the device decides what it actually grants.
type MJPEG struct {
	URL string

	mu     sync.Mutex
	resp   *http.Response
	reader *multipart.Reader
}

// NewMJPEG builds an MJPEG device for the given stream URL.
func NewMJPEG(url string) *MJPEG {
	return &MJPEG{URL: url}
}

// Open connects to the stream. The connection is held until Close; no
// overall timeout applies because the body is a live stream.
func (m *MJPEG) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resp != nil {
		return fmt.Errorf("mjpeg stream already open")
	}

	client := &http.Client{Transport: &http.Transport{
		ResponseHeaderTimeout: 10 * time.Second,
	}}
	resp, err := client.Get(m.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return ErrPermissionDenied
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return fmt.Errorf("%w: status %d", ErrDeviceUnavailable, resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		return fmt.Errorf("%w: not an mjpeg stream (%s)", ErrDeviceUnavailable, resp.Header.Get("Content-Type"))
	}

	m.resp = resp
	m.reader = multipart.NewReader(resp.Body, params["boundary"])
	return nil
}

// Frame reads the next part of the stream and decodes it. The read happens
// outside the lock: it blocks for as long as the stream takes to produce a
// frame, and Close must stay free to drop the connection underneath it.
func (m *MJPEG) Frame() (image.Image, error) {
	m.mu.Lock()
	reader := m.reader
	m.mu.Unlock()
	if reader == nil {
		return nil, ErrNoStream
	}
	part, err := reader.NextPart()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer part.Close()
	img, err := jpeg.Decode(part)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Close drops the stream connection, which also unblocks any read stuck in
// Frame. Idempotent.
func (m *MJPEG) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resp == nil {
		return nil
	}
	err := m.resp.Body.Close()
	m.resp = nil
	m.reader = nil
	return err
}
