package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Camera source kinds.
const (
	CameraMJPEG   = "mjpeg"
	CameraCommand = "command"
)

// Config is the user-editable application configuration. It lives in a YAML
// file under the user config directory and is bound through Viper so the UI
// config tab and environment overrides share one source of truth.
type Config struct {
	ServerURL   string `mapstructure:"server_url" validate:"required,url"`
	GeocodeURL  string `mapstructure:"geocode_url" validate:"omitempty,url"`
	IPLookupURL string `mapstructure:"ip_lookup_url" validate:"omitempty,url"`

	CameraSource  string   `mapstructure:"camera_source" validate:"oneof=mjpeg command"`
	CameraURL     string   `mapstructure:"camera_url" validate:"omitempty,url"`
	CameraCommand string   `mapstructure:"camera_command"`
	CameraArgs    []string `mapstructure:"camera_args"`

	// Fixed installation coordinates, used when no IP lookup is wanted.
	// Both zero means "unset".
	Latitude  float64 `mapstructure:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `mapstructure:"longitude" validate:"gte=-180,lte=180"`

	DataFolder string `mapstructure:"data_folder" validate:"required"`
}

var validate = validator.New()

// Path returns the config file location, XDG aware, matching where the
// application writes it on first run.
func Path() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting user home directory: %w", err)
		}
		if runtime.GOOS == "windows" {
			configHome = filepath.Join(homeDir, "AppData", "Roaming")
		} else {
			configHome = filepath.Join(homeDir, ".config")
		}
	}
	return filepath.Join(configHome, "attendly", "attendly.yml"), nil
}

// SetDefaults registers every config key with its default value on the given
// Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080/api")
	v.SetDefault("geocode_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("ip_lookup_url", "")
	v.SetDefault("camera_source", CameraMJPEG)
	v.SetDefault("camera_url", "http://localhost:8081/video")
	v.SetDefault("camera_command", "fswebcam")
	v.SetDefault("camera_args", []string{"-r", "1280x720", "--no-banner", "--jpeg", "90", "--save", "-"})
	v.SetDefault("latitude", 0)
	v.SetDefault("longitude", 0)
	v.SetDefault("data_folder", "./data")
}

// FromViper decodes and validates the current Viper state.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks a config against its struct tags.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// HasFixedPosition reports whether installation coordinates are configured.
func (c Config) HasFixedPosition() bool {
	return c.Latitude != 0 || c.Longitude != 0
}
