package cutout

import (
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	// alphaCutoff treats pixels below half opacity as background.
	alphaCutoff   = 128
	maxPaletteSrc = 256 * 256
)

// Swatch is one dominant color of a cut-out subject.
type Swatch struct {
	Hex    string
	Weight float64
	// Light is true when dark text reads better on top of the color.
	Light bool
}

// Palette extracts up to k dominant colors from the visible part of img.
// Transparent pixels are ignored; a fully transparent image yields nil.
func Palette(img image.Image, k int) []Swatch {
	if k <= 0 {
		return nil
	}
	subject := visiblePixels(img)
	if subject == nil {
		return nil
	}

	found := dominantcolor.FindWeight(subject, k)
	swatches := make([]Swatch, 0, len(found))
	for _, c := range found {
		col, _ := colorful.MakeColor(c.RGBA)
		col = col.Clamped()
		l, _, _ := col.Lab()
		swatches = append(swatches, Swatch{
			Hex:    col.Hex(),
			Weight: c.Weight,
			Light:  l > 0.6,
		})
	}
	slices.SortStableFunc(swatches, func(a, b Swatch) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		}
		return 0
	})
	return swatches
}

// visiblePixels packs the opaque-enough pixels of img into a square opaque
// image, repeating them cyclically to fill the last row.
func visiblePixels(img image.Image) *image.NRGBA {
	b := img.Bounds()
	step := 1
	if area := b.Dx() * b.Dy(); area > maxPaletteSrc {
		step = int(math.Ceil(math.Sqrt(float64(area) / maxPaletteSrc)))
	}

	var pixels []color.NRGBA
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A < alphaCutoff {
				continue
			}
			c.A = 255
			pixels = append(pixels, c)
		}
	}
	if len(pixels) == 0 {
		return nil
	}

	side := int(math.Ceil(math.Sqrt(float64(len(pixels)))))
	out := image.NewNRGBA(image.Rect(0, 0, side, side))
	for i := 0; i < side*side; i++ {
		out.SetNRGBA(i%side, i/side, pixels[i%len(pixels)])
	}
	return out
}
