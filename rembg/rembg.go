// Package rembg defines the background-removal collaborator. The model itself
// runs elsewhere; this package only talks to it.
package rembg

import (
	"context"
	"errors"
	"image"
	"image/draw"
)

var ErrEmptyResult = errors.New("rembg: empty result")

//go:generate mockgen -destination=mocks/rembg.go -package=mocks . Remover
type Remover interface {
	// Remove returns img with background pixels made transparent. It is
	// called exactly once per processed image.
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// PassthroughRemBG returns its input unchanged as NRGBA. Useful when no model
// service is available.
type PassthroughRemBG struct{}

func NewPassthroughRemBG() *PassthroughRemBG {
	return &PassthroughRemBG{}
}

func (d *PassthroughRemBG) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst, nil
}
