// Package geo resolves the device position to a display address for punch
// submissions. Resolution is best-effort by design: a missing position or a
// failed geocode lookup degrades to a fallback address and never blocks a
// punch.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrUnavailable is returned by a Positioner with no usable position source.
var ErrUnavailable = errors.New("position unavailable")

// UnavailableAddress is shown when no device position could be obtained.
const UnavailableAddress = "Location unavailable"

// Position is one device fix.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Positioner produces a one-shot device position.
type Positioner interface {
	Position() (Position, error)
}

// Location is the resolved outcome. Coordinates are nil when the device
// position was unavailable; Address is always set.
type Location struct {
	Latitude  *float64
	Longitude *float64
	Address   string
}

// Fixed is a Positioner with installation coordinates from the config,
// for kiosk-style deployments with no position hardware.
type Fixed struct {
	Lat, Lon float64
}

func (f Fixed) Position() (Position, error) {
	return Position{Latitude: f.Lat, Longitude: f.Lon}, nil
}

// IPLookup is a Positioner backed by an ip-api style HTTP endpoint
// (GET {base}/json returning lat/lon for the caller's address).
type IPLookup struct {
	BaseURL string
	Client  *http.Client
}

func (p IPLookup) Position() (Position, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Get(p.BaseURL + "/json")
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Position{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var body struct {
		Status string  `json:"status"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if body.Status == "fail" {
		return Position{}, ErrUnavailable
	}
	return Position{Latitude: body.Lat, Longitude: body.Lon}, nil
}

// Resolver turns one device position into a display address, exactly once per
// instance. Concurrent callers of Resolve share the single underlying lookup.
type Resolver struct {
	positioner Positioner
	geocodeURL string
	client     *http.Client

	once sync.Once
	done chan struct{}
	loc  Location
}

// NewResolver builds a single-shot resolver. positioner may be nil, in which
// case the location resolves as unavailable. geocodeURL is the base of a
// Nominatim-compatible reverse geocoding service; empty skips geocoding and
// uses the coordinate string directly.
func NewResolver(positioner Positioner, geocodeURL string) *Resolver {
	return &Resolver{
		positioner: positioner,
		geocodeURL: geocodeURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		done:       make(chan struct{}),
	}
}

// Resolve blocks until the location is known and returns it. Safe for
// concurrent use; the lookup runs once and later calls return the cached
// result.
func (r *Resolver) Resolve() Location {
	r.once.Do(func() {
		r.loc = r.resolve()
		close(r.done)
	})
	<-r.done
	return r.loc
}

// Peek returns the location if resolution has finished, without blocking.
func (r *Resolver) Peek() (Location, bool) {
	select {
	case <-r.done:
		return r.loc, true
	default:
		return Location{}, false
	}
}

func (r *Resolver) resolve() Location {
	if r.positioner == nil {
		return Location{Address: UnavailableAddress}
	}
	pos, err := r.positioner.Position()
	if err != nil {
		return Location{Address: UnavailableAddress}
	}

	loc := Location{
		Latitude:  &pos.Latitude,
		Longitude: &pos.Longitude,
		// Geocoding failure must never fail the location step.
		Address: fmt.Sprintf("%.6f, %.6f", pos.Latitude, pos.Longitude),
	}
	if r.geocodeURL == "" {
		return loc
	}
	if addr, err := r.reverseGeocode(pos); err == nil && addr != "" {
		loc.Address = addr
	}
	return loc
}

// reverseGeocode asks a Nominatim-compatible endpoint for a display address.
func (r *Resolver) reverseGeocode(pos Position) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%.6f", pos.Latitude))
	q.Set("lon", fmt.Sprintf("%.6f", pos.Longitude))

	req, err := http.NewRequest(http.MethodGet, r.geocodeURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	// Nominatim requires an identifying agent.
	req.Header.Set("User-Agent", "attendly")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode status %d", resp.StatusCode)
	}
	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.DisplayName, nil
}
