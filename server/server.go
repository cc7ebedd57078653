package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Logger(log), gin.Recovery())
	router.MaxMultipartMemory = 8 << 20

	router.SetHTMLTemplate(template.Must(template.New("").ParseFS(templatesFS, "templates/*.html")))

	router.GET("/", h.Index)
	router.GET("/health", h.Health)
	router.POST("/upload", h.Upload)
	router.GET("/result", h.Result)
	router.GET("/download/:quality/:filename", h.Download)
	router.GET("/uploads/:filename", h.Preview)

	return router
}

func New(addr string, h *Handler, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h, log),
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MB
		},
		log: log,
	}
}

func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
