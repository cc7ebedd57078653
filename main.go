package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/logger"
	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/samples"
	"github.com/chaos-io/cutout/server"
	"github.com/chaos-io/cutout/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init storage", zap.Error(err))
	}

	proc := cutout.NewProcessor(store, newRemover(cfg, log), log,
		cutout.WithNamer(newNamer(cfg.App.Naming)),
		cutout.WithMaxSide(cfg.App.MaxSide))
	lib := samples.NewLibrary(os.DirFS(cfg.Storage.SamplesDir))

	if cfg.Retention.MaxAge > 0 {
		retention := storage.NewRetention(store, cfg.Retention.MaxAge, log)
		if err := retention.Start(cfg.Retention.Schedule); err != nil {
			log.Fatal("Failed to schedule retention sweep", zap.Error(err))
		}
		defer retention.Stop()
	}

	srv := server.New(cfg.Server.Addr(), server.NewHandler(proc, store, lib, cfg.App.MaxUploadSize, log), log)

	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Storage.Driver == config.StorageS3 {
		return storage.NewS3Store(ctx, &cfg.S3, log)
	}
	return storage.NewLocalStore(cfg.Storage.Dir, log)
}

func newRemover(cfg *config.Config, log *zap.Logger) rembg.Remover {
	if cfg.Rembg.Driver == config.RemoverNone {
		log.Warn("Background removal disabled, images pass through unchanged")
		return rembg.NewPassthroughRemBG()
	}
	return rembg.NewHTTPRemBG(cfg.Rembg.URL, cfg.Rembg.Model, cfg.Rembg.Timeout, log)
}

func newNamer(naming string) cutout.Namer {
	if naming == config.NamingUnique {
		return cutout.UniqueNamer{}
	}
	return cutout.StemNamer{}
}
