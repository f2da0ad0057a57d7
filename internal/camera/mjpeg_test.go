package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func encodeFrame(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
	return buf.Bytes()
}

func mjpegHandler(t *testing.T, frames int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		for i := 0; i < frames; i++ {
			data := encodeFrame(t, uint8(i*40))
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data))
			w.Write(data)
			fmt.Fprint(w, "\r\n")
		}
		fmt.Fprint(w, "--frame--\r\n")
	}
}

func TestMJPEGStream(t *testing.T) {
	srv := httptest.NewServer(mjpegHandler(t, 3))
	defer srv.Close()

	dev := NewMJPEG(srv.URL)
	if err := dev.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dev.Close()

	for i := 0; i < 3; i++ {
		img, err := dev.Frame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if img.Bounds().Dx() != 4 {
			t.Fatalf("frame %d bounds = %v", i, img.Bounds())
		}
	}
}

func TestMJPEGUnauthorizedIsPermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if err := NewMJPEG(srv.URL).Open(); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestMJPEGNonStreamContentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	if err := NewMJPEG(srv.URL).Open(); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}

// stalledHandler serves one complete frame and then holds the connection
// open without producing another, like a paused IP camera.
func stalledHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		data := encodeFrame(t, 128)
		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data))
		w.Write(data)
		fmt.Fprint(w, "\r\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}
}

func TestMJPEGCloseUnblocksStalledStream(t *testing.T) {
	srv := httptest.NewServer(stalledHandler(t))
	defer srv.Close()

	dev := NewMJPEG(srv.URL)
	if err := dev.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := dev.Frame(); err != nil {
		t.Fatalf("first frame: %v", err)
	}

	stalled := make(chan error, 1)
	go func() {
		_, err := dev.Frame()
		stalled <- err
	}()
	time.Sleep(50 * time.Millisecond) // let the read block on the stalled stream

	closed := make(chan error, 1)
	go func() { closed <- dev.Close() }()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("close blocked behind a stalled frame read")
	}

	select {
	case err := <-stalled:
		if err == nil {
			t.Fatalf("stalled frame read must fail once the stream is dropped")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stalled frame read still blocked after close")
	}
}

func TestMJPEGCloseIdempotent(t *testing.T) {
	srv := httptest.NewServer(mjpegHandler(t, 1))
	defer srv.Close()

	dev := NewMJPEG(srv.URL)
	if err := dev.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := dev.Frame(); !errors.Is(err, ErrNoStream) {
		t.Fatalf("frame after close = %v, want ErrNoStream", err)
	}
}
