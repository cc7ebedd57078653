package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/chaos-io/cutout/logger"
	"github.com/chaos-io/cutout/samples"
	"github.com/chaos-io/cutout/util"
	nhttp "github.com/chaos-io/cutout/util/http"
)

// Populates the samples directory with images scraped from a page.
func main() {
	pageURL := flag.String("page", "https://liquipedia.net/dota2/Dota_2_X_Monster_Hunter/Hero_Atlas", "page to scrape")
	match := flag.String("match", "Dota_2_Monster_Hunter_codex", "substring an image URL must contain")
	saveDir := flag.String("dir", "./static", "samples directory")
	flag.Parse()

	log, err := logger.New("info")
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()
	defer util.Trace("fetch samples")()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := samples.NewFetcher(nhttp.NewHTTPClient(), log)
	saved, err := fetcher.Fetch(ctx, *pageURL, *match, *saveDir)
	if err != nil {
		log.Fatal("Failed to fetch samples", zap.Error(err))
	}

	for _, name := range saved {
		img, err := util.OpenImage(filepath.Join(*saveDir, name))
		if err != nil {
			log.Warn("Saved sample does not decode", zap.String("name", name), zap.Error(err))
			continue
		}
		log.Info("Sample ready",
			zap.String("name", name),
			zap.Int("width", img.Bounds().Dx()),
			zap.Int("height", img.Bounds().Dy()))
	}
}
