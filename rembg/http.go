package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	nhttp "github.com/chaos-io/cutout/util/http"
)

// HTTPRemBG calls a rembg server ("rembg s"): POST multipart field "file",
// optional field "model", PNG in the response body.
type HTTPRemBG struct {
	url     string
	model   string
	timeout time.Duration
	cli     nhttp.IClient
	log     *zap.Logger
}

func NewHTTPRemBG(url, model string, timeout time.Duration, log *zap.Logger) *HTTPRemBG {
	return &HTTPRemBG{
		url:     url,
		model:   model,
		timeout: timeout,
		cli:     nhttp.NewHTTPClientWithTimeout(timeout),
		log:     log,
	}
}

func (b *HTTPRemBG) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	body, contentType, err := b.encodeForm(img)
	if err != nil {
		return nil, err
	}

	var raw []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: b.url,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": contentType},
		Body:       body,
		Response:   &raw,
		Timeout:    b.timeout,
	}

	start := time.Now()
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyResult
	}
	if ct := reqParam.ContentType; ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("unexpected response content type %q", ct)
	}

	out, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode rembg response: %w", err)
	}

	b.log.Debug("Background removed",
		zap.String("model", b.model),
		zap.Int("response_size", len(raw)),
		zap.Duration("latency", time.Since(start)))
	return out, nil
}

/*
	curl -X POST "$REMBG_URL" \
	  -F "file=@my_image.png" \
	  -F "model=u2net" -o out.png
*/
func (b *HTTPRemBG) encodeForm(img image.Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(part, img); err != nil {
		return nil, "", fmt.Errorf("encode form file: %w", err)
	}

	if b.model != "" {
		if err := writer.WriteField("model", b.model); err != nil {
			return nil, "", fmt.Errorf("write model field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
