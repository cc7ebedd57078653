package cutout

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/rembg/mocks"
	"github.com/chaos-io/cutout/storage"
)

// gradient is smooth enough that best compression clearly beats none.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// clearLeft makes the left half transparent.
func clearLeft(_ context.Context, img image.Image) (image.Image, error) {
	out := toNRGBA(img)
	b := out.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx()/2; x++ {
			out.SetNRGBA(x, y, color.NRGBA{})
		}
	}
	return out, nil
}

type fakeSamples map[string][]byte

func (f fakeSamples) Open(name string) (io.ReadCloser, error) {
	data, ok := f[name]
	if !ok {
		return nil, errors.New("no such sample")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	s, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func decodePNG(t *testing.T, s storage.Store, name string) (image.Image, []byte) {
	t.Helper()
	data, err := storage.ReadAll(context.Background(), s, name)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img, data
}

func TestProcessor_ProcessUpload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)

	ctrl := gomock.NewController(t)
	remover := mocks.NewMockRemover(ctrl)
	remover.EXPECT().Remove(gomock.Any(), gomock.Any()).DoAndReturn(clearLeft).Times(1)

	p := NewProcessor(store, remover, zap.NewNop())
	res, err := p.ProcessUpload(ctx, "cat.jpg", bytes.NewReader(encodeJPEG(t, gradient(64, 48))))
	require.NoError(t, err)
	assert.Equal(t, &Result{Original: "cat.jpg", HD: "no_bg_cat.png", Std: "std_cat.png"}, res)

	hdImg, hdData := decodePNG(t, store, res.HD)
	stdImg, stdData := decodePNG(t, store, res.Std)

	assert.IsType(t, &image.NRGBA{}, hdImg)
	assert.IsType(t, &image.NRGBA{}, stdImg)
	assert.Equal(t, image.Rect(0, 0, 64, 48), hdImg.Bounds())
	assert.Equal(t, hdImg.Bounds(), stdImg.Bounds())
	assert.Equal(t, hdImg.(*image.NRGBA).Pix, stdImg.(*image.NRGBA).Pix)
	assert.Less(t, len(stdData), len(hdData))

	_, _, _, a := hdImg.At(0, 0).RGBA()
	assert.Zero(t, a)

	ok, err := store.Exists(ctx, "cat.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcessor_ProcessUpload_MaxSide(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	var got image.Rectangle
	remover := removerFunc(func(ctx context.Context, img image.Image) (image.Image, error) {
		got = img.Bounds()
		return img, nil
	})

	p := NewProcessor(store, remover, zap.NewNop(), WithMaxSide(32))
	res, err := p.ProcessUpload(context.Background(), "wide.jpg", bytes.NewReader(encodeJPEG(t, gradient(128, 64))))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 16), got)

	hdImg, _ := decodePNG(t, store, res.HD)
	assert.Equal(t, got, hdImg.Bounds())
}

type removerFunc func(ctx context.Context, img image.Image) (image.Image, error)

func (f removerFunc) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

func TestProcessor_ProcessUpload_UniqueNaming(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	p := NewProcessor(store, rembg.NewPassthroughRemBG(), zap.NewNop(), WithNamer(UniqueNamer{}))

	data := encodeJPEG(t, gradient(8, 8))
	first, err := p.ProcessUpload(context.Background(), "cat.jpg", bytes.NewReader(data))
	require.NoError(t, err)
	second, err := p.ProcessUpload(context.Background(), "cat.jpg", bytes.NewReader(data))
	require.NoError(t, err)

	assert.NotEqual(t, first.Original, second.Original)
	assert.NotEqual(t, first.HD, second.HD)
	assert.True(t, strings.HasSuffix(first.Original, "_cat.jpg"))
	assert.True(t, strings.HasPrefix(first.HD, "no_bg_"))
	assert.True(t, strings.HasSuffix(first.HD, "_cat.png"))

	files, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 6)
}

func TestProcessor_ProcessUpload_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not an image", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		remover := mocks.NewMockRemover(ctrl)

		p := NewProcessor(newStore(t), remover, zap.NewNop())
		_, err := p.ProcessUpload(context.Background(), "notes.jpg", strings.NewReader("plain text"))
		assert.ErrorIs(t, err, image.ErrFormat)
	})

	t.Run("remover fails", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		boom := errors.New("model unavailable")
		ctrl := gomock.NewController(t)
		remover := mocks.NewMockRemover(ctrl)
		remover.EXPECT().Remove(gomock.Any(), gomock.Any()).Return(nil, boom)

		p := NewProcessor(store, remover, zap.NewNop())
		_, err := p.ProcessUpload(context.Background(), "cat.jpg", bytes.NewReader(encodeJPEG(t, gradient(4, 4))))
		assert.ErrorIs(t, err, boom)

		ok, err := store.Exists(context.Background(), "no_bg_cat.png")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("remover returns nil", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		remover := mocks.NewMockRemover(ctrl)
		remover.EXPECT().Remove(gomock.Any(), gomock.Any()).Return(nil, nil)

		p := NewProcessor(newStore(t), remover, zap.NewNop())
		_, err := p.ProcessUpload(context.Background(), "cat.jpg", bytes.NewReader(encodeJPEG(t, gradient(4, 4))))
		assert.ErrorIs(t, err, rembg.ErrEmptyResult)
	})
}

func TestProcessor_ProcessSample_CopyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)

	original := encodeJPEG(t, gradient(16, 16))
	lib := fakeSamples{"sample1.jpg": original}

	ctrl := gomock.NewController(t)
	remover := mocks.NewMockRemover(ctrl)
	remover.EXPECT().Remove(gomock.Any(), gomock.Any()).DoAndReturn(clearLeft).Times(2)

	p := NewProcessor(store, remover, zap.NewNop(), WithNamer(UniqueNamer{}))

	res, err := p.ProcessSample(ctx, "sample1.jpg", lib)
	require.NoError(t, err)
	assert.True(t, res.Copied)
	assert.Equal(t, "sample1.jpg", res.Original)
	assert.Equal(t, "no_bg_sample1.png", res.HD)
	assert.Equal(t, "std_sample1.png", res.Std)

	// A changed asset does not replace the stored copy.
	lib["sample1.jpg"] = encodeJPEG(t, gradient(32, 32))
	require.NoError(t, store.Delete(ctx, res.HD))

	res, err = p.ProcessSample(ctx, "sample1.jpg", lib)
	require.NoError(t, err)
	assert.False(t, res.Copied)

	stored, err := storage.ReadAll(ctx, store, "sample1.jpg")
	require.NoError(t, err)
	assert.Equal(t, original, stored)

	hdImg, _ := decodePNG(t, store, res.HD)
	assert.Equal(t, image.Rect(0, 0, 16, 16), hdImg.Bounds())
}

func TestProcessor_ProcessSample_Missing(t *testing.T) {
	t.Parallel()

	p := NewProcessor(newStore(t), rembg.NewPassthroughRemBG(), zap.NewNop())
	_, err := p.ProcessSample(context.Background(), "ghost.jpg", fakeSamples{})
	assert.Error(t, err)
}

func TestProcessor_SameNameSerialized(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	var mu sync.Mutex
	active, peak := 0, 0
	remover := removerFunc(func(ctx context.Context, img image.Image) (image.Image, error) {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()

		out, err := clearLeft(ctx, img)

		mu.Lock()
		active--
		mu.Unlock()
		return out, err
	})

	p := NewProcessor(store, remover, zap.NewNop())
	data := encodeJPEG(t, gradient(32, 32))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ProcessUpload(context.Background(), "cat.jpg", bytes.NewReader(data))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Zero(t, p.locks.len())
}

func TestProcessor_Palette(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	p := NewProcessor(store, removerFunc(clearLeft), zap.NewNop())
	res, err := p.ProcessUpload(context.Background(), "cat.jpg", bytes.NewReader(encodeJPEG(t, gradient(32, 32))))
	require.NoError(t, err)

	swatches, err := p.Palette(context.Background(), res.HD, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, swatches)

	_, err = p.Palette(context.Background(), "missing.png", 3)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEncodeRenditions_StdNeverLarger(t *testing.T) {
	t.Parallel()

	for _, img := range []*image.NRGBA{gradient(1, 1), gradient(3, 2), gradient(200, 100)} {
		hd, std, err := encodeRenditions(img)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(std), len(hd))
	}
}
