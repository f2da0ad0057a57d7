package ui

import (
	"strings"

	"github.com/ovallesco/attendly/internal/config"
	"github.com/ovallesco/attendly/internal/session"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/lang"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/spf13/viper"
)

// Config is the settings tab: server and device configuration plus the
// stored sign-in. Saving validates through the config package before
// anything is written.
type Config struct {
	window         fyne.Window
	sessions       *session.Store
	configFilePath string

	// OnSessionChanged runs after sign-in or sign-out.
	OnSessionChanged func()
}

func NewConfig(w fyne.Window, sessions *session.Store, configFilePath string) *Config {
	return &Config{window: w, sessions: sessions, configFilePath: configFilePath}
}

func (c *Config) MakeUI() fyne.CanvasObject {
	serverEntry := widget.NewEntry()
	serverEntry.SetText(viper.GetString("server_url"))

	geocodeEntry := widget.NewEntry()
	geocodeEntry.SetText(viper.GetString("geocode_url"))

	ipLookupEntry := widget.NewEntry()
	ipLookupEntry.SetText(viper.GetString("ip_lookup_url"))
	ipLookupEntry.PlaceHolder = lang.L("empty to disable")

	cameraURLEntry := widget.NewEntry()
	cameraURLEntry.SetText(viper.GetString("camera_url"))

	cameraCmdEntry := widget.NewEntry()
	cameraCmdEntry.SetText(viper.GetString("camera_command"))

	sourceSelect := widget.NewSelect([]string{config.CameraMJPEG, config.CameraCommand}, nil)
	sourceSelect.SetSelected(viper.GetString("camera_source"))

	saveBtn := widget.NewButton(lang.L("Save Configuration"), func() {
		viper.Set("server_url", strings.TrimSpace(serverEntry.Text))
		viper.Set("geocode_url", strings.TrimSpace(geocodeEntry.Text))
		viper.Set("ip_lookup_url", strings.TrimSpace(ipLookupEntry.Text))
		viper.Set("camera_source", sourceSelect.Selected)
		viper.Set("camera_url", strings.TrimSpace(cameraURLEntry.Text))
		viper.Set("camera_command", strings.TrimSpace(cameraCmdEntry.Text))

		if _, err := config.FromViper(viper.GetViper()); err != nil {
			dialog.ShowError(err, c.window)
			return
		}
		if err := viper.WriteConfigAs(c.configFilePath); err != nil {
			dialog.ShowError(err, c.window)
			return
		}
		dialog.ShowInformation(lang.L("Saved"), lang.L("Configuration saved. Restart to apply everywhere."), c.window)
	})

	// Sign-in. The attendance backend issues the token; this client only
	// stores it.
	tokenEntry := widget.NewPasswordEntry()
	tokenEntry.PlaceHolder = lang.L("paste access token")

	sessionLabel := widget.NewLabel("")
	refreshSession := func() {
		if cur := c.sessions.Current(); cur != nil {
			name := cur.Name
			if name == "" {
				name = cur.EmployeeID
			}
			if name == "" {
				name = lang.L("signed in")
			}
			sessionLabel.SetText(lang.L("Session") + ": " + name)
		} else {
			sessionLabel.SetText(lang.L("Session") + ": " + lang.L("signed out"))
		}
	}
	refreshSession()

	signInBtn := widget.NewButtonWithIcon(lang.L("Sign In"), theme.LoginIcon(), func() {
		token := strings.TrimSpace(tokenEntry.Text)
		if token == "" {
			return
		}
		if err := c.sessions.Save(session.FromToken(token)); err != nil {
			dialog.ShowError(err, c.window)
			return
		}
		tokenEntry.SetText("")
		refreshSession()
		if c.OnSessionChanged != nil {
			c.OnSessionChanged()
		}
	})

	signOutBtn := widget.NewButtonWithIcon(lang.L("Sign Out"), theme.LogoutIcon(), func() {
		if err := c.sessions.Clear(); err != nil {
			dialog.ShowError(err, c.window)
			return
		}
		refreshSession()
		if c.OnSessionChanged != nil {
			c.OnSessionChanged()
		}
	})
	signOutBtn.Importance = widget.DangerImportance

	quitBtn := widget.NewButtonWithIcon(lang.L("Quit Application"), theme.LogoutIcon(), func() {
		fyne.CurrentApp().Quit()
	})

	return container.NewVScroll(container.NewVBox(
		widget.NewForm(
			widget.NewFormItem(lang.L("Server URL"), serverEntry),
			widget.NewFormItem(lang.L("Geocoding URL"), geocodeEntry),
			widget.NewFormItem(lang.L("IP lookup URL"), ipLookupEntry),
			widget.NewFormItem(lang.L("Camera source"), sourceSelect),
			widget.NewFormItem(lang.L("Camera URL"), cameraURLEntry),
			widget.NewFormItem(lang.L("Camera command"), cameraCmdEntry),
		),
		saveBtn,
		widget.NewSeparator(),
		sessionLabel,
		widget.NewForm(widget.NewFormItem(lang.L("Access token"), tokenEntry)),
		container.NewHBox(signInBtn, signOutBtn),
		widget.NewSeparator(),
		quitBtn,
	))
}
