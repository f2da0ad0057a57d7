package ui

import (
	"errors"
	"time"

	"github.com/ovallesco/attendly/internal/api"
	"github.com/ovallesco/attendly/internal/camera"
	"github.com/ovallesco/attendly/internal/config"
	"github.com/ovallesco/attendly/internal/geo"
	"github.com/ovallesco/attendly/internal/models"
	"github.com/ovallesco/attendly/internal/punch"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const previewInterval = 250 * time.Millisecond

// ShowPunchDialog runs one punch attempt: live camera preview, location
// line, capture/retake, then confirm. onDone runs on the UI loop after the
// attempt settles successfully (including soft conflicts). Closing the
// dialog at any point releases the camera; late results are discarded.
func ShowPunchDialog(win fyne.Window, kind punch.Kind, client *api.Client, cfg config.Config, onDone func(rec *models.AttendanceRecord, conflict bool)) {
	attempt := punch.NewAttempt(kind, client, camera.New(cameraDevice(cfg)), newResolver(cfg), "")

	// closed and the widget toggles below are only touched on the UI loop.
	closed := false
	stopPreview := make(chan struct{})

	preview := canvas.NewImageFromImage(nil)
	preview.FillMode = canvas.ImageFillContain
	preview.SetMinSize(fyne.NewSize(420, 315))

	locationLabel := widget.NewLabel("Resolving location…")
	locationLabel.Alignment = fyne.TextAlignCenter
	statusLabel := widget.NewLabel("")
	statusLabel.Alignment = fyne.TextAlignCenter
	statusLabel.Wrapping = fyne.TextWrapWord

	var captureBtn, retakeBtn, confirmBtn *widget.Button

	captureBtn = widget.NewButtonWithIcon("Take Photo", theme.MediaPhotoIcon(), nil)
	retakeBtn = widget.NewButtonWithIcon("Retake", theme.ViewRefreshIcon(), nil)
	confirmBtn = widget.NewButtonWithIcon(confirmText(kind), theme.ConfirmIcon(), nil)
	captureBtn.Disable() // until the stream is up
	retakeBtn.Hide()
	confirmBtn.Hide()

	content := container.NewVBox(
		preview,
		locationLabel,
		statusLabel,
		container.NewHBox(captureBtn, retakeBtn, confirmBtn),
	)

	dlg := dialog.NewCustom(title(kind), "Cancel", content, win)
	dlg.SetOnClosed(func() {
		closed = true
		close(stopPreview)
		attempt.Close()
	})

	// Camera and location start concurrently so the user can confirm as
	// soon as a photo exists.
	go func() {
		err := attempt.Start()
		fyne.Do(func() {
			if closed {
				return
			}
			if err != nil {
				statusLabel.SetText(cameraErrorText(err))
				return
			}
			captureBtn.Enable()
		})
	}()
	go func() {
		loc := attempt.LocationDone()
		fyne.Do(func() {
			if closed {
				return
			}
			locationLabel.SetText(loc.Address)
		})
	}()

	// Preview loop. Frame errors are transient (stream closed during
	// retake or after capture); the loop just skips them.
	go func() {
		ticker := time.NewTicker(previewInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPreview:
				return
			case <-ticker.C:
			}
			img, err := attempt.Preview()
			if err != nil {
				continue
			}
			fyne.Do(func() {
				if closed || attempt.State() != punch.StateCapturing {
					return
				}
				preview.Image = img
				preview.Refresh()
			})
		}
	}()

	captureBtn.OnTapped = func() {
		captureBtn.Disable()
		go func() {
			err := attempt.TakePhoto()
			fyne.Do(func() {
				if closed {
					return
				}
				if err != nil {
					statusLabel.SetText(cameraErrorText(err))
					captureBtn.Enable()
					return
				}
				preview.Image = attempt.Photo()
				preview.Refresh()
				captureBtn.Hide()
				retakeBtn.Show()
				confirmBtn.Show()
			})
		}()
	}

	retakeBtn.OnTapped = func() {
		retakeBtn.Disable()
		confirmBtn.Hide()
		go func() {
			err := attempt.Retake()
			fyne.Do(func() {
				if closed {
					return
				}
				retakeBtn.Enable()
				if err != nil {
					statusLabel.SetText(cameraErrorText(err))
					return
				}
				statusLabel.SetText("")
				retakeBtn.Hide()
				captureBtn.Show()
				captureBtn.Enable()
			})
		}()
	}

	confirmBtn.OnTapped = func() {
		// One submission per confirmation; the button stays disabled
		// while the call is in flight.
		confirmBtn.Disable()
		retakeBtn.Disable()
		go func() {
			res, err := attempt.Confirm()
			fyne.Do(func() {
				if closed {
					return
				}
				if err != nil {
					if errors.Is(err, punch.ErrBusy) {
						return
					}
					if api.IsSessionExpired(err) {
						dlg.Hide()
						return
					}
					statusLabel.SetText(err.Error())
					confirmBtn.Enable()
					retakeBtn.Enable()
					return
				}
				dlg.Hide()
				onDone(res.Record, res.Conflict)
			})
		}()
	}

	dlg.Show()
}

func title(kind punch.Kind) string {
	if kind == punch.KindOut {
		return "Punch Out"
	}
	return "Punch In"
}

func confirmText(kind punch.Kind) string {
	if kind == punch.KindOut {
		return "Confirm Punch Out"
	}
	return "Confirm Punch In"
}

func cameraErrorText(err error) string {
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		return "Camera access was denied. A photo is required to punch, so attendance cannot be recorded without it."
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return "No camera is available. Check the camera settings in the Config tab."
	default:
		return err.Error()
	}
}

// cameraDevice builds the configured camera source.
func cameraDevice(cfg config.Config) camera.Device {
	if cfg.CameraSource == config.CameraCommand {
		return camera.NewCommand(cfg.CameraCommand, cfg.CameraArgs)
	}
	return camera.NewMJPEG(cfg.CameraURL)
}

// newResolver builds the location resolver for one attempt. Fixed
// installation coordinates win over IP lookup; neither configured means the
// punch proceeds without location.
func newResolver(cfg config.Config) *geo.Resolver {
	var positioner geo.Positioner
	switch {
	case cfg.HasFixedPosition():
		positioner = geo.Fixed{Lat: cfg.Latitude, Lon: cfg.Longitude}
	case cfg.IPLookupURL != "":
		positioner = geo.IPLookup{BaseURL: cfg.IPLookupURL}
	}
	return geo.NewResolver(positioner, cfg.GeocodeURL)
}

func showInfo(win fyne.Window, title, msg string) {
	dialog.ShowInformation(title, msg, win)
}
