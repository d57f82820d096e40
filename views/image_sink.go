package views

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"golang.org/x/image/tiff"

	"trigger-capture/models"
)

// ImageSink encodes a frame's pixels to a destination. Implementations must
// not modify the frame and must not keep references to its data.
type ImageSink interface {
	// Extension is the file extension, without the dot.
	Extension() string
	Encode(w io.Writer, f *models.Frame) error
}

// TIFFSink writes uncompressed greyscale TIFFs.
type TIFFSink struct {
	Compression tiff.CompressionType
}

func NewTIFFSink() *TIFFSink {
	return &TIFFSink{Compression: tiff.Uncompressed}
}

func (s *TIFFSink) Extension() string { return "tiff" }

func (s *TIFFSink) Encode(w io.Writer, f *models.Frame) error {
	img, err := FrameImage(f)
	if err != nil {
		return err
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: s.Compression})
}

// FrameImage wraps the frame's pixels as an image.Image. Mono8 data is
// shared; Mono16 data (little-endian from the driver) is converted to the
// big-endian layout image.Gray16 expects.
func FrameImage(f *models.Frame) (image.Image, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("frame %d: invalid size %dx%d", f.AcqNFrame, f.Width, f.Height)
	}
	need := f.Stride() * f.Height
	if len(f.Data) < need {
		return nil, fmt.Errorf("frame %d: short pixel buffer (%d < %d bytes)", f.AcqNFrame, len(f.Data), need)
	}
	rect := image.Rect(0, 0, f.Width, f.Height)

	switch f.Format {
	case models.Mono8:
		return &image.Gray{Pix: f.Data[:need], Stride: f.Stride(), Rect: rect}, nil
	case models.Mono16:
		pix := make([]byte, need)
		for i := 0; i+1 < need; i += 2 {
			binary.BigEndian.PutUint16(pix[i:], binary.LittleEndian.Uint16(f.Data[i:]))
		}
		return &image.Gray16{Pix: pix, Stride: f.Stride(), Rect: rect}, nil
	}
	return nil, fmt.Errorf("frame %d: unsupported pixel format %v", f.AcqNFrame, f.Format)
}
