// Package cutout turns a stored original into its two background-free PNG
// renditions.
package cutout

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/storage"
	"github.com/chaos-io/cutout/util"
)

// Result names the three files of one processing request.
type Result struct {
	Original string
	HD       string
	Std      string
	// Copied is set when a sample was copied into storage by this request.
	Copied bool
}

// SampleSource opens bundled sample assets by name.
type SampleSource interface {
	Open(name string) (io.ReadCloser, error)
}

type Processor struct {
	store   storage.Store
	remover rembg.Remover
	namer   Namer
	maxSide int
	locks   *keyedMutex
	log     *zap.Logger
}

type Option func(*Processor)

func WithNamer(n Namer) Option {
	return func(p *Processor) { p.namer = n }
}

// WithMaxSide downscales inputs whose longest side exceeds n before removal.
func WithMaxSide(n int) Option {
	return func(p *Processor) { p.maxSide = n }
}

func NewProcessor(store storage.Store, remover rembg.Remover, log *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:   store,
		remover: remover,
		namer:   StemNamer{},
		locks:   newKeyedMutex(),
		log:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessUpload stores the raw upload under its (possibly renamed) sanitized
// name and renders both derived files.
func (p *Processor) ProcessUpload(ctx context.Context, sanitized string, r io.Reader) (*Result, error) {
	original := p.namer.OriginalName(sanitized)

	unlock := p.locks.Lock(Stem(original))
	defer unlock()

	if err := p.store.Put(ctx, original, r); err != nil {
		return nil, fmt.Errorf("store original: %w", err)
	}
	return p.process(ctx, original)
}

// ProcessSample copies the sample into storage unless a file of that name is
// already there, then renders both derived files. Presence is checked by name
// only, so an updated sample asset does not replace an earlier copy.
func (p *Processor) ProcessSample(ctx context.Context, name string, samples SampleSource) (*Result, error) {
	unlock := p.locks.Lock(Stem(name))
	defer unlock()

	exists, err := p.store.Exists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check stored sample: %w", err)
	}

	copied := false
	if !exists {
		src, err := samples.Open(name)
		if err != nil {
			return nil, err
		}
		err = p.store.Put(ctx, name, src)
		_ = src.Close()
		if err != nil {
			return nil, fmt.Errorf("copy sample: %w", err)
		}
		copied = true
	}

	res, err := p.process(ctx, name)
	if err != nil {
		return nil, err
	}
	res.Copied = copied
	return res, nil
}

func (p *Processor) process(ctx context.Context, original string) (*Result, error) {
	start := time.Now()

	img, err := p.load(ctx, original)
	if err != nil {
		return nil, err
	}
	src := resizeWithinMax(toNRGBA(img), p.maxSide)

	removed, err := p.remover.Remove(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("remove background: %w", err)
	}
	if removed == nil {
		return nil, rembg.ErrEmptyResult
	}
	out := toNRGBA(removed)

	hdData, stdData, err := encodeRenditions(out)
	if err != nil {
		return nil, err
	}

	hd, std := DerivedNames(original)
	if err := p.store.Put(ctx, hd, bytes.NewReader(hdData)); err != nil {
		return nil, fmt.Errorf("store %s: %w", hd, err)
	}
	if err := p.store.Put(ctx, std, bytes.NewReader(stdData)); err != nil {
		return nil, fmt.Errorf("store %s: %w", std, err)
	}

	p.log.Info("Image processed",
		zap.String("original", original),
		zap.Int("width", out.Bounds().Dx()),
		zap.Int("height", out.Bounds().Dy()),
		zap.Bool("transparent", hasTransparency(out)),
		zap.Int("hd_size", len(hdData)),
		zap.Int("std_size", len(stdData)),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{Original: original, HD: hd, Std: std}, nil
}

func (p *Processor) load(ctx context.Context, name string) (image.Image, error) {
	rc, err := p.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	img, err := util.DecodeImage(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// encodeRenditions writes the same pixels twice: uncompressed for the
// high-fidelity file and best-compressed for the standard one. The standard
// bytes never exceed the high-fidelity bytes.
func encodeRenditions(img *image.NRGBA) (hd, std []byte, err error) {
	var hdBuf, stdBuf bytes.Buffer

	hdEnc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := hdEnc.Encode(&hdBuf, img); err != nil {
		return nil, nil, fmt.Errorf("encode hd: %w", err)
	}
	stdEnc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := stdEnc.Encode(&stdBuf, img); err != nil {
		return nil, nil, fmt.Errorf("encode std: %w", err)
	}

	if stdBuf.Len() > hdBuf.Len() {
		return hdBuf.Bytes(), hdBuf.Bytes(), nil
	}
	return hdBuf.Bytes(), stdBuf.Bytes(), nil
}

// Palette reads a stored rendition and returns up to k dominant colors of its
// visible pixels.
func (p *Processor) Palette(ctx context.Context, name string, k int) ([]Swatch, error) {
	img, err := p.load(ctx, name)
	if err != nil {
		return nil, err
	}
	return Palette(img, k), nil
}
