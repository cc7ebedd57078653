package samples

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	nhttp "github.com/chaos-io/cutout/util/http"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	img := pngBytes(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/gallery", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>
<img alt="a" src="/images/thumb/a/ab/sample_cat.png/320px-sample_cat.png">
<img src="/images/sample_dog.png">
<img src="/images/sample_dog.png">
<img src="/images/sample_broken.png">
<img src="/images/logo.png">
</html>`))
	})
	mux.HandleFunc("/images/a/ab/sample_cat.png", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(img) })
	mux.HandleFunc("/images/sample_dog.png", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(img) })
	mux.HandleFunc("/images/sample_broken.png", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("nope")) })
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "static")
	saved, err := NewFetcher(nhttp.NewHTTPClient(), zap.NewNop()).Fetch(context.Background(), server.URL+"/gallery", "sample_", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample_cat.png", "sample_dog.png"}, saved)

	names, err := NewLibrary(os.DirFS(dir)).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"sample_cat.png", "sample_dog.png"}, names)
}

func TestFetcher_Fetch_PageError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewFetcher(nhttp.NewHTTPClient(), zap.NewNop()).Fetch(context.Background(), server.URL, "", t.TempDir())
	assert.Error(t, err)
}

func TestNormalizeThumbURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/images/a/ab/File.png", normalizeThumbURL("/images/thumb/a/ab/File.png/320px-File.png"))
	assert.Equal(t, "/images/File.png", normalizeThumbURL("/images/File.png"))
}
