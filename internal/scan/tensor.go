package scan

import (
	"fmt"
	"image"

	"oncoscan/internal/inference"
)

// ToTensor resamples img (nearest neighbour) to the backend's input spec
// and lays it out NHWC with batch 1, values scaled to [0,1]. Grayscale
// sources are replicated across RGB channels; single-channel specs get
// luminance.
func ToTensor(img image.Image, spec inference.InputSpec) (inference.Tensor, error) {
	if !spec.Valid() {
		return inference.Tensor{}, fmt.Errorf("unsupported input spec %v", spec.Shape())
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return inference.Tensor{}, fmt.Errorf("%w: empty image", ErrMalformedScan)
	}
	h, w, c := spec.Height, spec.Width, spec.Channels
	out := make([]float32, spec.Size())
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y*b.Dy()/h
		for x := 0; x < w; x++ {
			sx := b.Min.X + x*b.Dx()/w
			r32, g32, b32, _ := img.At(sx, sy).RGBA()
			r, g, bl := float32(r32>>8)/255, float32(g32>>8)/255, float32(b32>>8)/255
			base := (y*w + x) * c
			if c == 1 {
				out[base] = 0.299*r + 0.587*g + 0.114*bl
				continue
			}
			out[base+0] = r
			out[base+1] = g
			out[base+2] = bl
		}
	}
	return inference.Tensor{Shape: spec.Shape(), Data: out}, nil
}
