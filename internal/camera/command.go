package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"strings"
	"sync"
)

// Command grabs frames by running an external capture tool (fswebcam,
// ffmpeg, imagesnap) that writes one JPEG to stdout per invocation. It is
// the fallback for platforms without a network camera.
type Command struct {
	Path string
	Args []string

	mu   sync.Mutex
	open bool
}

// NewCommand builds a command device. Args should include whatever
// resolution flags the tool supports; the tool grants what it can.
func NewCommand(path string, args []string) *Command {
	return &Command{Path: path, Args: args}
}

// Open verifies the grabber exists. The process itself runs per frame.
func (c *Command) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return fmt.Errorf("command camera already open")
	}
	if _, err := exec.LookPath(c.Path); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	c.open = true
	return nil
}

// Frame runs the grabber once and decodes its output.
func (c *Command) Frame() (image.Image, error) {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()
	if !open {
		return nil, ErrNoStream
	}

	cmd := exec.Command(c.Path, c.Args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		if strings.Contains(strings.ToLower(errOut.String()), "permission") {
			return nil, ErrPermissionDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	img, err := jpeg.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Close marks the device released. Idempotent.
func (c *Command) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}
