package main

import (
	_ "embed" // Required for go:embed

	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ovallesco/attendly/internal/api"
	"github.com/ovallesco/attendly/internal/config"
	"github.com/ovallesco/attendly/internal/punch"
	"github.com/ovallesco/attendly/internal/session"
	"github.com/ovallesco/attendly/internal/ui"
	"github.com/ovallesco/attendly/internal/updater"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
)

//go:embed Icon.png
var embeddedIconBytes []byte

var userConfigFilePath string

func setupViper() error {
	viper.SetConfigName("attendly")
	viper.SetConfigType("yaml")

	path, err := config.Path()
	if err != nil {
		return err
	}
	userConfigFilePath = path
	viper.SetConfigFile(userConfigFilePath)

	if err := os.MkdirAll(filepath.Dir(userConfigFilePath), 0755); err != nil {
		return err
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("attendly")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			log.Println("Config file not found; creating one with default values")
			if err := viper.WriteConfigAs(userConfigFilePath); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	return nil
}

func main() {
	os.Setenv("FYNE_SCALE", "auto")
	_ = godotenv.Load()

	go func() {
		if err := updater.SelfUpdate("ovallesco", "attendly"); err != nil {
			log.Printf("Self-update failed: %v", err)
		}
	}()

	a := app.NewWithID("com.ovallesco.attendly")

	iconResource := fyne.NewStaticResource("Icon.png", embeddedIconBytes)
	a.SetIcon(iconResource)

	w := a.NewWindow("Attendly")
	w.Resize(fyne.NewSize(480, 640))

	if err := setupViper(); err != nil {
		dialog.ShowError(err, w)
		w.ShowAndRun()
		return
	}

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		// An invalid config still gets a window, so the user can fix it
		// in the Config tab.
		dialog.ShowError(err, w)
	}

	sessions := session.NewStore(cfg.DataFolder)

	// Session expiry clears the stored credential and flips the UI to the
	// signed-out state; it is never shown as an error.
	var notifyExpired func()
	client := api.New(cfg.ServerURL, sessions.Token, func() {
		if sessions.Current() == nil {
			return // already signed out; nothing to clear, no loop
		}
		sessions.Clear()
		if notifyExpired != nil {
			notifyExpired()
		}
	})

	dashboard := ui.NewDashboard(w, client, cfg)
	history := ui.NewHistory(w, client)
	configUI := ui.NewConfig(w, sessions, userConfigFilePath)

	dashboard.OnPunched = func(kind punch.Kind) {
		if kind == punch.KindOut {
			history.Reload()
		}
	}
	configUI.OnSessionChanged = func() {
		dashboard.Refresh()
		history.Reload()
	}
	notifyExpired = func() {
		fyne.Do(func() {
			dashboard.Refresh()
		})
	}

	tabs := container.NewAppTabs(
		container.NewTabItem("Today", dashboard.MakeUI()),
		container.NewTabItem("History", history.MakeUI()),
		container.NewTabItem("Config", configUI.MakeUI()),
	)
	w.SetContent(tabs)

	ui.SetupTray(a, w, iconResource, dashboard)

	w.ShowAndRun()
}
