// Package scan turns uploaded study bytes into images and model tensors.
package scan

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var ErrMalformedScan = errors.New("malformed scan")

// MaxPixels bounds the declared size of PNG/JPEG uploads. Decoders allocate
// the full pixel buffer from the header before reading any pixel data.
const MaxPixels = 64 << 20

const (
	FormatDICOM = "dicom"
	FormatPNG   = "png"
	FormatJPEG  = "jpeg"
)

type Scan struct {
	Image    image.Image
	Modality string
	Format   string
}

// IsDICOM reports whether data carries the DICM preamble marker or the
// filename ends in .dcm.
func IsDICOM(data []byte, filename string) bool {
	if len(data) >= 132 && string(data[128:132]) == "DICM" {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".dcm")
}

// Decode parses a DICOM study or a PNG/JPEG image.
func Decode(data []byte, filename string) (*Scan, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedScan)
	}
	if IsDICOM(data, filename) {
		return decodeDICOM(data)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScan, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: image dimensions %dx%d out of range", ErrMalformedScan, cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScan, err)
	}
	return &Scan{Image: img, Modality: imageModality(filename), Format: format}, nil
}

func imageModality(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg":
		return "CT"
	default:
		return "Unknown"
	}
}

func decodeDICOM(data []byte) (s *Scan, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("%w: dicom parser panic: %v", ErrMalformedScan, r)
		}
	}()

	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScan, err)
	}
	pixels, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: no pixel data", ErrMalformedScan)
	}
	info, ok := pixels.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, fmt.Errorf("%w: no image frames", ErrMalformedScan)
	}
	img, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScan, err)
	}

	modality := "DICOM"
	if el, err := ds.FindElementByTag(tag.Modality); err == nil {
		if vals, ok := el.Value.GetValue().([]string); ok && len(vals) > 0 && strings.TrimSpace(vals[0]) != "" {
			modality = strings.TrimSpace(vals[0])
		}
	}
	return &Scan{Image: normalize(img), Modality: modality, Format: FormatDICOM}, nil
}

// normalize stretches the luminance range of img onto 0..255.
func normalize(img image.Image) *image.Gray {
	b := img.Bounds()
	lum := make([]uint16, 0, b.Dx()*b.Dy())
	lo, hi := uint16(0xffff), uint16(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
			lum = append(lum, v)
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	span := float64(hi) - float64(lo)
	for i, v := range lum {
		var g uint8
		if span > 0 {
			g = uint8((float64(v) - float64(lo)) * 255 / span)
		}
		out.Pix[i] = g
	}
	return out
}
