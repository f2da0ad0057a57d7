package config

import (
	"testing"

	"github.com/spf13/viper"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestDefaultsAreValid(t *testing.T) {
	if _, err := FromViper(newTestViper()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestRejectsMalformedServerURL(t *testing.T) {
	v := newTestViper()
	v.Set("server_url", "not a url")
	if _, err := FromViper(v); err == nil {
		t.Fatalf("expected error for malformed server_url")
	}
}

func TestRejectsOutOfRangeCoordinates(t *testing.T) {
	v := newTestViper()
	v.Set("latitude", 123.0)
	if _, err := FromViper(v); err == nil {
		t.Fatalf("expected error for latitude out of range")
	}
}

func TestRejectsUnknownCameraSource(t *testing.T) {
	v := newTestViper()
	v.Set("camera_source", "v4l2")
	if _, err := FromViper(v); err == nil {
		t.Fatalf("expected error for unknown camera source")
	}
}

func TestHasFixedPosition(t *testing.T) {
	var cfg Config
	if cfg.HasFixedPosition() {
		t.Fatalf("zero coordinates should read as unset")
	}
	cfg.Latitude = 4.6097
	cfg.Longitude = -74.0817
	if !cfg.HasFixedPosition() {
		t.Fatalf("configured coordinates should read as set")
	}
}
