package ingest

import (
	"context"
	"errors"
	"time"

	"trigger-capture/utils"
)

// SimDriver is a synthetic camera that paces frames at the configured fps.
// Pixels are a gradient shifted by the frame number.
type SimDriver struct {
	maxW, maxH int
	settings   SensorSettings
	ticker     *time.Ticker
	seq        uint32
	start      time.Time
}

// NewSimDriver builds a simulated sensor of the given size.
func NewSimDriver(sensorWidth, sensorHeight int) *SimDriver {
	return &SimDriver{maxW: sensorWidth, maxH: sensorHeight}
}

func (d *SimDriver) MaxResolution() (int, int) { return d.maxW, d.maxH }

func (d *SimDriver) Configure(s SensorSettings) error {
	if s.FPS <= 0 {
		return errors.New("sim: fps must be positive")
	}
	d.settings = s
	return nil
}

func (d *SimDriver) Start() error {
	interval := time.Duration(float64(time.Second) / d.settings.FPS)
	if interval <= 0 {
		interval = time.Microsecond
	}
	d.ticker = time.NewTicker(interval)
	d.start = time.Now()
	utils.L().Debug("sim camera: interval=%v", interval)
	return nil
}

func (d *SimDriver) ReadNext(ctx context.Context) (RawImage, error) {
	if d.ticker == nil {
		return RawImage{}, errors.New("sim: acquisition not started")
	}
	select {
	case <-ctx.Done():
		return RawImage{}, ctx.Err()
	case <-d.ticker.C:
	}

	s := d.settings
	stride := s.Width * s.Format.BytesPerPixel()
	data := make([]byte, stride*s.Height)
	shift := byte(d.seq)
	for y := 0; y < s.Height; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := range row {
			row[x] = byte(x+y) + shift
		}
	}

	img := RawImage{
		Data:         data,
		Width:        s.Width,
		Height:       s.Height,
		Format:       s.Format,
		NFrame:       d.seq,
		AcqNFrame:    d.seq,
		TimestampRaw: uint64(time.Since(d.start).Nanoseconds()),
		ExposureUs:   uint32(s.ExposureUs),
	}
	d.seq++
	return img, nil
}

func (d *SimDriver) Stop() error {
	if d.ticker != nil {
		d.ticker.Stop()
	}
	return nil
}
