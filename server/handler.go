package server

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/samples"
	"github.com/chaos-io/cutout/storage"
	"github.com/chaos-io/cutout/util"
)

const paletteSize = 5

// Download quality tags. The tag is validated but the filename alone selects
// the file.
var qualities = map[string]struct{}{
	"hd":       {},
	"std":      {},
	"original": {},
}

type Handler struct {
	proc          *cutout.Processor
	store         storage.Store
	samples       *samples.Library
	maxUploadSize int64
	log           *zap.Logger
}

func NewHandler(proc *cutout.Processor, store storage.Store, lib *samples.Library, maxUploadSize int64, log *zap.Logger) *Handler {
	return &Handler{
		proc:          proc,
		store:         store,
		samples:       lib,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

func (h *Handler) Index(c *gin.Context) {
	names, err := h.samples.List()
	if err != nil {
		h.log.Warn("Failed to list samples", zap.Error(err))
	}
	c.HTML(http.StatusOK, "index.html", gin.H{"samples": names})
}

func (h *Handler) Upload(c *gin.Context) {
	// Room for the multipart envelope on top of the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+1<<20)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		c.String(http.StatusBadRequest, "No file found")
		return
	}
	if file.Filename == "" {
		c.String(http.StatusBadRequest, "No selected file")
		return
	}
	if file.Size > h.maxUploadSize {
		c.String(http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	name := util.SecureFilename(file.Filename)
	if name == "" {
		c.String(http.StatusBadRequest, "Invalid filename")
		return
	}

	src, err := file.Open()
	if err != nil {
		h.internalError(c, err)
		return
	}
	defer func() {
		_ = src.Close()
	}()

	res, err := h.proc.ProcessUpload(c.Request.Context(), name, src)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.Redirect(http.StatusFound, resultURL(res))
}

// resultURL keeps the parameter order filename, std_filename, original.
func resultURL(res *cutout.Result) string {
	return "/result?filename=" + url.QueryEscape(res.HD) +
		"&std_filename=" + url.QueryEscape(res.Std) +
		"&original=" + url.QueryEscape(res.Original)
}

func (h *Handler) Result(c *gin.Context) {
	if sample := c.Query("image"); sample != "" {
		h.sample(c, sample)
		return
	}

	filename := c.Query("filename")
	stdFilename := c.Query("std_filename")
	original := c.Query("original")
	if filename == "" || stdFilename == "" || original == "" {
		c.String(http.StatusBadRequest, "Image missing")
		return
	}

	h.renderResult(c, &cutout.Result{Original: original, HD: filename, Std: stdFilename})
}

func (h *Handler) sample(c *gin.Context, sample string) {
	name := util.SecureFilename(sample)
	if name == "" || !h.samples.Exists(name) {
		c.String(http.StatusNotFound, "Sample image not found")
		return
	}

	res, err := h.proc.ProcessSample(c.Request.Context(), name, h.samples)
	if errors.Is(err, samples.ErrNotFound) {
		c.String(http.StatusNotFound, "Sample image not found")
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	h.log.Info("Sample processed",
		zap.String("sample", name),
		zap.Bool("copied", res.Copied),
		zap.String("request_id", requestID(c)))
	h.renderResult(c, res)
}

func (h *Handler) renderResult(c *gin.Context, res *cutout.Result) {
	var palette []cutout.Swatch
	if util.SecureFilename(res.HD) == res.HD {
		var err error
		palette, err = h.proc.Palette(c.Request.Context(), res.HD, paletteSize)
		if err != nil {
			h.log.Warn("Failed to build palette", zap.String("filename", res.HD), zap.Error(err))
		}
	}

	c.HTML(http.StatusOK, "result.html", gin.H{
		"original_filename": res.Original,
		"filename":          res.HD,
		"std_filename":      res.Std,
		"palette":           palette,
	})
}

func (h *Handler) Download(c *gin.Context) {
	if _, ok := qualities[c.Param("quality")]; !ok {
		c.String(http.StatusNotFound, "Unknown quality")
		return
	}
	h.serveFile(c, "attachment")
}

func (h *Handler) Preview(c *gin.Context) {
	h.serveFile(c, "inline")
}

func (h *Handler) serveFile(c *gin.Context, disposition string) {
	name := c.Param("filename")
	if name == "" || util.SecureFilename(name) != name {
		c.String(http.StatusNotFound, "File not found: "+name)
		return
	}

	info, err := h.store.Stat(c.Request.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		c.String(http.StatusNotFound, "File not found: "+name)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	rc, err := h.store.Open(c.Request.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		c.String(http.StatusNotFound, "File not found: "+name)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}
	defer func() {
		_ = rc.Close()
	}()

	c.DataFromReader(http.StatusOK, info.Size, contentType(name), rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType(disposition, map[string]string{"filename": name}),
	})
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.log.Error("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", requestID(c)),
		zap.Error(err))
	_ = c.Error(err)
	c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
