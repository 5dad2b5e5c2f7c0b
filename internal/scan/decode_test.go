package scan

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oncoscan/internal/inference"
	"oncoscan/internal/scan/scantest"
)

func TestIsDICOM(t *testing.T) {
	assert.True(t, IsDICOM(scantest.DICOM(2, 2, []byte{0, 1, 2, 3}, "CT"), "upload.bin"))
	assert.True(t, IsDICOM([]byte("whatever"), "STUDY.DCM"))
	assert.False(t, IsDICOM(scantest.PNG(4, 4), "scan.png"))
}

func TestDecodeDICOM(t *testing.T) {
	data := scantest.DICOM(2, 2, []byte{10, 20, 30, 40}, "MR")
	s, err := Decode(data, "study.dcm")
	require.NoError(t, err)
	assert.Equal(t, FormatDICOM, s.Format)
	assert.Equal(t, "MR", s.Modality)

	b := s.Image.Bounds()
	assert.Equal(t, 2, b.Dx())
	assert.Equal(t, 2, b.Dy())
	gray := s.Image.(*image.Gray)
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(1, 1).Y)
}

func TestDecodePNG(t *testing.T) {
	s, err := Decode(scantest.PNG(8, 6), "scan.png")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, s.Format)
	assert.Equal(t, "CT", s.Modality)
	assert.Equal(t, 8, s.Image.Bounds().Dx())

	s, err = Decode(scantest.PNG(8, 6), "upload")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", s.Modality)
}

func TestDecodeMalformed(t *testing.T) {
	corrupted := scantest.DICOM(2, 2, []byte{1, 2, 3, 4}, "CT")
	corrupted = corrupted[:140]

	for name, tc := range map[string]struct {
		data []byte
		name string
	}{
		"empty":         {nil, "a.dcm"},
		"garbage image": {[]byte("fake-image-data"), "scan.png"},
		"garbage dicom": {[]byte("fake-image-data"), "scan.dcm"},
		"truncated":     {corrupted, "scan.dcm"},
		"truncated png": {scantest.PNG(8, 8)[:20], "scan.png"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(tc.data, tc.name)
			assert.ErrorIs(t, err, ErrMalformedScan)
		})
	}
}

func TestDecodeRejectsOversizedImage(t *testing.T) {
	data := scantest.PNGHeader(30000, 30000)
	require.Less(t, len(data), 128)

	_, err := Decode(data, "x.png")
	require.ErrorIs(t, err, ErrMalformedScan)
	assert.Contains(t, err.Error(), "30000x30000")
}

func TestDecodeAcceptsDeclaredSizeWithinLimit(t *testing.T) {
	_, err := Decode(scantest.PNGHeader(4, 4), "x.png")
	require.ErrorIs(t, err, ErrMalformedScan)
	assert.NotContains(t, err.Error(), "out of range")
}

func TestNormalizeFlatImage(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 3, 3))
	for i := range img.Pix {
		img.Pix[i] = 7
	}
	out := normalize(img)
	for _, p := range out.Pix {
		assert.Equal(t, uint8(0), p)
	}
}

func TestToTensorRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}
	spec := inference.InputSpec{Height: 2, Width: 2, Channels: 3}
	tensor, err := ToTensor(img, spec)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2, 3}, tensor.Shape)
	require.Len(t, tensor.Data, 12)
	assert.InDelta(t, 1.0, tensor.Data[0], 1e-6)
	assert.InDelta(t, 0.0, tensor.Data[1], 1e-6)
	assert.InDelta(t, 0.2, tensor.Data[2], 1e-6)
	assert.True(t, tensor.Matches(spec))
}

func TestToTensorGrayscale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.Pix[0] = 255
	spec := inference.InputSpec{Height: 3, Width: 3, Channels: 1}
	tensor, err := ToTensor(img, spec)
	require.NoError(t, err)
	require.Len(t, tensor.Data, 9)
	for _, v := range tensor.Data {
		assert.InDelta(t, 1.0, v, 1e-3)
	}

	rgb, err := ToTensor(img, inference.InputSpec{Height: 1, Width: 1, Channels: 3})
	require.NoError(t, err)
	assert.Equal(t, rgb.Data[0], rgb.Data[1])
	assert.Equal(t, rgb.Data[1], rgb.Data[2])
}

func TestToTensorRejects(t *testing.T) {
	_, err := ToTensor(image.NewGray(image.Rect(0, 0, 1, 1)), inference.InputSpec{Height: 1, Width: 1, Channels: 4})
	assert.Error(t, err)
	_, err = ToTensor(image.NewGray(image.Rect(0, 0, 0, 0)), inference.InputSpec{Height: 1, Width: 1, Channels: 1})
	assert.ErrorIs(t, err, ErrMalformedScan)
}
