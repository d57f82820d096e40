package models

import "fmt"

// PixelFormat tags the layout of Frame.Data.
type PixelFormat int

const (
	Mono8 PixelFormat = iota
	Mono16
)

var pixelFormatNames = map[PixelFormat]string{
	Mono8:  "Mono8",
	Mono16: "Mono16",
}

func (p PixelFormat) String() string {
	if n, ok := pixelFormatNames[p]; ok {
		return n
	}
	return "unknown"
}

// BytesPerPixel returns the storage size of one pixel.
func (p PixelFormat) BytesPerPixel() int {
	if p == Mono16 {
		return 2
	}
	return 1
}

// ParsePixelFormat maps a config string ("Mono8", "mono16", ...) to a PixelFormat.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch s {
	case "", "Mono8", "mono8", "MONO8":
		return Mono8, nil
	case "Mono16", "mono16", "MONO16":
		return Mono16, nil
	}
	return Mono8, fmt.Errorf("unknown pixel format %q", s)
}

// Frame is one image delivered by the camera driver together with the
// hardware counters that identify it.
//
// A Frame is immutable once built. The same *Frame is shared by the window
// buffer and the persistence worker; nobody writes to Data after creation, so
// no copy of the pixel payload is ever made.
type Frame struct {
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	Format       PixelFormat `json:"format"`
	NFrame       uint32      `json:"nframe"`        // driver frame counter
	AcqNFrame    uint32      `json:"acq_nframe"`    // acquisition sequence number
	TimestampRaw uint64      `json:"timestamp_raw"` // hardware timestamp, driver units
	ExposureUs   uint32      `json:"exposure_time"` // exposure in microseconds
	Data         []byte      `json:"-"`             // raw pixels – NOT written to CSV
}

// Sequence is the ordering key of a frame within a capture session.
func (f *Frame) Sequence() uint32 { return f.AcqNFrame }

// Stride returns the number of bytes per image row.
func (f *Frame) Stride() int { return f.Width * f.Format.BytesPerPixel() }

// CSVHeader returns the ordered column names for metadata.csv.
func (Frame) CSVHeader() []string {
	return []string{"nframe", "acq_nframe", "timestamp_raw", "exposure_time"}
}

// CSVRow serialises one frame into a metadata.csv row.
func (f *Frame) CSVRow() []string {
	return newRow(4).
		unum(uint64(f.NFrame)).
		unum(uint64(f.AcqNFrame)).
		unum(f.TimestampRaw).
		unum(uint64(f.ExposureUs))
}
