package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"trigger-capture/models"
	"trigger-capture/utils"
)

// ErrSourceClosed is returned by NextFrame after Close.
var ErrSourceClosed = errors.New("frame source closed")

// RawImage is what a camera driver hands back for one exposure. Data is
// owned by the caller after ReadNext returns.
type RawImage struct {
	Data         []byte
	Width        int
	Height       int
	Format       models.PixelFormat
	NFrame       uint32
	AcqNFrame    uint32
	TimestampRaw uint64
	ExposureUs   uint32
}

// SensorSettings is the acquisition setup pushed to the driver before Start.
type SensorSettings struct {
	FPS        float64
	ExposureUs float64
	Width      int
	Height     int
	OffsetX    int
	OffsetY    int
	Format     models.PixelFormat
}

// Driver is the physical camera binding.
type Driver interface {
	// MaxResolution reports the full sensor size.
	MaxResolution() (width, height int)
	Configure(s SensorSettings) error
	Start() error
	// ReadNext blocks until the next frame is available.
	ReadNext(ctx context.Context) (RawImage, error)
	Stop() error
}

// CameraReader adapts a Driver into a stream of immutable frames. It is read
// from a single goroutine, the capture loop.
type CameraReader struct {
	cfg      utils.CameraConfig
	drv      Driver
	settings SensorSettings
	started  bool
	closed   atomic.Bool
	produced uint64
}

// NewCameraReader wires the adapter to a driver. Nothing touches the
// hardware until Open.
func NewCameraReader(cfg utils.CameraConfig, drv Driver) *CameraReader {
	return &CameraReader{cfg: cfg, drv: drv}
}

// Open applies the sensor settings and starts acquisition.
func (r *CameraReader) Open() error {
	format, err := models.ParsePixelFormat(r.cfg.PixelFormat)
	if err != nil {
		return err
	}

	maxW, maxH := r.drv.MaxResolution()
	if r.cfg.Width > maxW || r.cfg.Height > maxH {
		return fmt.Errorf("requested %dx%d exceeds sensor %dx%d", r.cfg.Width, r.cfg.Height, maxW, maxH)
	}
	offX, offY := CenteredOffsets(maxW, maxH, r.cfg.Width, r.cfg.Height)
	if r.cfg.OffsetX >= 0 {
		offX = r.cfg.OffsetX
	}
	if r.cfg.OffsetY >= 0 {
		offY = r.cfg.OffsetY
	}

	r.settings = SensorSettings{
		FPS:        r.cfg.FPS,
		ExposureUs: AdjustExposure(r.cfg.ExposureUs, r.cfg.FPS),
		Width:      r.cfg.Width,
		Height:     r.cfg.Height,
		OffsetX:    offX,
		OffsetY:    offY,
		Format:     format,
	}
	if r.settings.ExposureUs != r.cfg.ExposureUs {
		utils.L().Warn("camera: exposure %.1fus too long for %.1f fps, clamped to %.1fus",
			r.cfg.ExposureUs, r.cfg.FPS, r.settings.ExposureUs)
	}

	if err := r.drv.Configure(r.settings); err != nil {
		return fmt.Errorf("configure camera: %w", err)
	}
	if err := r.drv.Start(); err != nil {
		return fmt.Errorf("start acquisition: %w", err)
	}
	r.started = true
	utils.L().Info("camera started  (fps=%.1f, exposure=%.1fus, roi=%dx%d+%d+%d, format=%v)",
		r.settings.FPS, r.settings.ExposureUs, r.settings.Width, r.settings.Height,
		r.settings.OffsetX, r.settings.OffsetY, r.settings.Format)
	return nil
}

// Settings returns what was pushed to the driver by Open.
func (r *CameraReader) Settings() SensorSettings { return r.settings }

// NextFrame blocks for the next exposure. Any driver error is returned
// as-is; the reader never retries.
func (r *CameraReader) NextFrame(ctx context.Context) (*models.Frame, error) {
	if r.closed.Load() {
		return nil, ErrSourceClosed
	}
	raw, err := r.drv.ReadNext(ctx)
	if err != nil {
		return nil, err
	}
	atomic.AddUint64(&r.produced, 1)
	return &models.Frame{
		Width:        raw.Width,
		Height:       raw.Height,
		Format:       raw.Format,
		NFrame:       raw.NFrame,
		AcqNFrame:    raw.AcqNFrame,
		TimestampRaw: raw.TimestampRaw,
		ExposureUs:   raw.ExposureUs,
		Data:         raw.Data,
	}, nil
}

// Close stops acquisition. Safe to call more than once.
func (r *CameraReader) Close() error {
	if r.closed.Swap(true) || !r.started {
		return nil
	}
	utils.L().Info("camera stopped  (produced=%d)", atomic.LoadUint64(&r.produced))
	return r.drv.Stop()
}

// Produced returns the number of frames handed out.
func (r *CameraReader) Produced() uint64 {
	return atomic.LoadUint64(&r.produced)
}

// CenteredOffsets returns the ROI offsets that centre a width x height
// window on the sensor, rounded up to the 32-pixel grid the sensor needs.
func CenteredOffsets(maxW, maxH, width, height int) (int, int) {
	align := func(v int) int {
		if v <= 0 {
			return 0
		}
		return int(math.Ceil(float64(v)/32.0)) * 32
	}
	return align((maxW - width) / 2), align((maxH - height) / 2)
}

// AdjustExposure clamps an exposure (us) so it fits in one frame period.
func AdjustExposure(exposureUs, fps float64) float64 {
	maxExposure := 1_000_000 / fps
	if exposureUs > maxExposure {
		return maxExposure - 1
	}
	return exposureUs
}
