package views

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"trigger-capture/models"
)

func TestTIFFSinkMono8RoundTrip(t *testing.T) {
	f := &models.Frame{
		Width: 3, Height: 2, Format: models.Mono8, AcqNFrame: 5,
		Data: []byte{0, 10, 20, 30, 40, 250},
	}
	var buf bytes.Buffer
	require.NoError(t, NewTIFFSink().Encode(&buf, f))

	img, err := tiff.Decode(&buf)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "decoded %T", img)
	assert.Equal(t, image.Rect(0, 0, 3, 2), gray.Bounds())
	assert.Equal(t, uint8(20), gray.GrayAt(2, 0).Y)
	assert.Equal(t, uint8(250), gray.GrayAt(2, 1).Y)
}

func TestTIFFSinkMono16(t *testing.T) {
	// 0x0102 and 0xABCD, little-endian from the driver.
	f := &models.Frame{
		Width: 2, Height: 1, Format: models.Mono16,
		Data: []byte{0x02, 0x01, 0xCD, 0xAB},
	}
	var buf bytes.Buffer
	require.NoError(t, NewTIFFSink().Encode(&buf, f))

	img, err := tiff.Decode(&buf)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray16)
	require.True(t, ok, "decoded %T", img)
	assert.Equal(t, uint16(0x0102), gray.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(0xABCD), gray.Gray16At(1, 0).Y)
	assert.Equal(t, []byte{0x02, 0x01, 0xCD, 0xAB}, f.Data, "frame must not be modified")
}

func TestFrameImageRejectsBadFrames(t *testing.T) {
	_, err := FrameImage(&models.Frame{Width: 4, Height: 4, Data: make([]byte, 15)})
	assert.Error(t, err)

	_, err = FrameImage(&models.Frame{Width: 0, Height: 4})
	assert.Error(t, err)
}

func TestTIFFSinkExtension(t *testing.T) {
	assert.Equal(t, "tiff", NewTIFFSink().Extension())
}
