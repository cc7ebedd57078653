package samples

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/chaos-io/cutout/util"
	nhttp "github.com/chaos-io/cutout/util/http"
)

// 匹配 img 标签中的 src
var imgSrcRe = regexp.MustCompile(`<img[^>]+src="([^">]+)"`)

// Fetcher scrapes a page for <img> sources and saves the matching images into
// a samples directory.
type Fetcher struct {
	cli nhttp.IClient
	log *zap.Logger
}

func NewFetcher(cli nhttp.IClient, log *zap.Logger) *Fetcher {
	return &Fetcher{cli: cli, log: log}
}

// Fetch downloads every image on pageURL whose URL contains match (all images
// when match is empty) into dir and returns the saved names. Failed downloads
// are logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, pageURL, match, dir string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create samples dir: %w", err)
	}

	var page []byte
	if err := f.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: pageURL,
		Method:     http.MethodGet,
		Response:   &page,
	}); err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}

	seen := map[string]struct{}{}
	var saved []string
	for _, m := range imgSrcRe.FindAllSubmatch(page, -1) {
		src := string(m[1])
		if match != "" && !strings.Contains(src, match) {
			continue
		}
		u, err := url.Parse(normalizeThumbURL(src))
		if err != nil {
			continue
		}
		full := base.ResolveReference(u)
		if _, ok := seen[full.String()]; ok {
			continue
		}
		seen[full.String()] = struct{}{}

		name, err := f.download(ctx, full, dir)
		if err != nil {
			f.log.Warn("Failed to fetch sample", zap.String("url", full.String()), zap.Error(err))
			continue
		}
		saved = append(saved, name)
	}
	return saved, nil
}

func (f *Fetcher) download(ctx context.Context, u *url.URL, dir string) (string, error) {
	name := util.SecureFilename(path.Base(u.Path))
	if name == "" || !IsImageName(name) {
		return "", fmt.Errorf("unsupported file name %q", path.Base(u.Path))
	}

	var data []byte
	if err := f.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: u.String(),
		Method:     http.MethodGet,
		Response:   &data,
	}); err != nil {
		return "", err
	}
	if !util.IsImage(data) {
		return "", fmt.Errorf("%s is not a decodable image", name)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	f.log.Info("Sample saved", zap.String("name", name), zap.Int("size", len(data)))
	return name, nil
}

// normalizeThumbURL turns a MediaWiki thumbnail URL
// (.../thumb/a/ab/File.png/320px-File.png) into the full-size file URL.
func normalizeThumbURL(imgURL string) string {
	before, sub, ok := strings.Cut(imgURL, "/thumb/")
	if !ok {
		return imgURL
	}
	idx := strings.LastIndex(sub, "/")
	if idx == -1 {
		return imgURL
	}
	return before + "/" + sub[:idx]
}
