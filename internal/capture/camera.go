package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/imageproc"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/disintegration/imaging"
)

const (
	DefaultCameraWidth  = 640
	DefaultCameraHeight = 480
	maxSnapshotBytes    = 8 << 20
)

// Device hands out single still frames.
type Device interface {
	Snapshot(ctx context.Context, width, height int) ([]byte, error)
}

// HTTPDevice reads stills from a snapshot endpoint (IP camera, capture sidecar).
type HTTPDevice struct {
	url    string
	client *http.Client
}

func NewHTTPDevice(url string, timeout time.Duration) *HTTPDevice {
	return &HTTPDevice{url: url, client: &http.Client{Timeout: timeout}}
}

func (d *HTTPDevice) Snapshot(ctx context.Context, width, height int) ([]byte, error) {
	if d == nil || d.url == "" {
		return nil, fmt.Errorf("%w: no snapshot device configured", model.ErrCaptureUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCaptureUnavailable, err)
	}
	q := req.URL.Query()
	q.Set("width", strconv.Itoa(width))
	q.Set("height", strconv.Itoa(height))
	req.URL.RawQuery = q.Encode()

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCaptureUnavailable, err)
	}
	defer closeBody(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: access denied by device", model.ErrCaptureUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: device responded %d", model.ErrCaptureUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCaptureUnavailable, err)
	}
	return data, nil
}

// Camera must be activated explicitly before it previews or captures.
type Camera struct {
	device Device
	width  int
	height int

	mu     sync.Mutex
	active bool
}

func NewCamera(device Device, width, height int) *Camera {
	if width <= 0 {
		width = DefaultCameraWidth
	}
	if height <= 0 {
		height = DefaultCameraHeight
	}
	return &Camera{device: device, width: width, height: height}
}

// Activate asks the device for a first frame. A missing device or a refused
// one yields ErrCaptureUnavailable and leaves the camera inactive.
func (c *Camera) Activate(ctx context.Context) error {
	if c.device == nil {
		return fmt.Errorf("%w: no device", model.ErrCaptureUnavailable)
	}
	if _, err := c.device.Snapshot(ctx, c.width, c.height); err != nil {
		if errors.Is(err, model.ErrCaptureUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", model.ErrCaptureUnavailable, err)
	}

	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	return nil
}

func (c *Camera) Deactivate() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

func (c *Camera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Preview returns the current frame as delivered by the device.
func (c *Camera) Preview(ctx context.Context) ([]byte, error) {
	if !c.Active() {
		return nil, model.ErrCameraInactive
	}
	return c.device.Snapshot(ctx, c.width, c.height)
}

// Frames keeps pulling preview frames every interval until ctx is done or the
// camera is deactivated. Failed pulls are skipped.
func (c *Camera) Frames(ctx context.Context, interval time.Duration) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			frame, err := c.Preview(ctx)
			switch {
			case errors.Is(err, model.ErrCameraInactive):
				return
			case err == nil:
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

// Capture samples one still at the camera's fixed target resolution.
func (c *Camera) Capture(ctx context.Context) (*model.RawImage, error) {
	if !c.Active() {
		return nil, model.ErrCameraInactive
	}

	data, err := c.device.Snapshot(ctx, c.width, c.height)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: camera frame: %v", model.ErrUnsupportedFormat, err)
	}
	if b := img.Bounds(); b.Dx() != c.width || b.Dy() != c.height {
		img = imaging.Fill(img, c.width, c.height, imaging.Center, imaging.CatmullRom)
	}

	return &model.RawImage{
		Image:    img,
		Origin:   model.OriginCamera,
		Original: model.EncodedImage{MIMEType: frameMIME(data), Data: data},
	}, nil
}

func frameMIME(data []byte) string {
	mime := imageproc.SniffMIME(data)
	if model.InImageTypeMap[mime] {
		return mime
	}
	return model.JPEG
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		log.Println("Camera failed to close snapshot body:", err)
	}
}
