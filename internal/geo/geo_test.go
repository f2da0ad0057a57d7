package geo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

type failingPositioner struct{}

func (failingPositioner) Position() (Position, error) { return Position{}, ErrUnavailable }

func TestResolveWithGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "jsonv2" {
			t.Errorf("format = %q", r.URL.Query().Get("format"))
		}
		json.NewEncoder(w).Encode(map[string]string{"display_name": "1 Main St, Springfield"})
	}))
	defer srv.Close()

	r := NewResolver(Fixed{Lat: 4.6097, Lon: -74.0817}, srv.URL)
	loc := r.Resolve()
	if loc.Address != "1 Main St, Springfield" {
		t.Fatalf("address = %q", loc.Address)
	}
	if loc.Latitude == nil || *loc.Latitude != 4.6097 {
		t.Fatalf("latitude not carried through: %+v", loc)
	}
}

func TestGeocodeFailureFallsBackToCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewResolver(Fixed{Lat: 4.6097, Lon: -74.0817}, srv.URL)
	loc := r.Resolve()
	if loc.Address != "4.609700, -74.081700" {
		t.Fatalf("fallback address = %q", loc.Address)
	}
	if loc.Latitude == nil || loc.Longitude == nil {
		t.Fatalf("coordinates must survive a geocode failure")
	}
}

func TestPositionerFailureIsNotFatal(t *testing.T) {
	r := NewResolver(failingPositioner{}, "")
	loc := r.Resolve()
	if loc.Address != UnavailableAddress {
		t.Fatalf("address = %q, want %q", loc.Address, UnavailableAddress)
	}
	if loc.Latitude != nil || loc.Longitude != nil {
		t.Fatalf("coordinates must be nil when the device position failed")
	}
}

func TestNilPositioner(t *testing.T) {
	r := NewResolver(nil, "")
	if loc := r.Resolve(); loc.Address != UnavailableAddress {
		t.Fatalf("address = %q", loc.Address)
	}
}

func TestResolvesExactlyOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]string{"display_name": "HQ"})
	}))
	defer srv.Close()

	r := NewResolver(Fixed{Lat: 1, Lon: 2}, srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if loc := r.Resolve(); loc.Address != "HQ" {
				t.Errorf("address = %q", loc.Address)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("geocode called %d times, want exactly 1", n)
	}
}

func TestPeek(t *testing.T) {
	r := NewResolver(Fixed{Lat: 1, Lon: 2}, "")
	if _, ok := r.Peek(); ok {
		t.Fatalf("peek before resolve should report not ready")
	}
	r.Resolve()
	loc, ok := r.Peek()
	if !ok || loc.Address == "" {
		t.Fatalf("peek after resolve = %+v, %v", loc, ok)
	}
}

func TestIPLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "lat": 40.71, "lon": -74.0})
	}))
	defer srv.Close()

	pos, err := IPLookup{BaseURL: srv.URL}.Position()
	if err != nil {
		t.Fatalf("ip lookup: %v", err)
	}
	if pos.Latitude != 40.71 || pos.Longitude != -74.0 {
		t.Fatalf("position = %+v", pos)
	}
}

func TestIPLookupFailStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "fail"})
	}))
	defer srv.Close()

	if _, err := (IPLookup{BaseURL: srv.URL}).Position(); err == nil {
		t.Fatalf("expected error for fail status")
	}
}
