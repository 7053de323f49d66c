// Package fetch downloads dataset archives over HTTP and extracts them.
package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gomlx/gomlx/examples/downloader"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config of the HTTP client. Zero values take the defaults below.
type Config struct {
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

const (
	defaultTimeout   = 30 * time.Minute
	defaultRetryWait = time.Second
)

// Client downloads and extracts archives.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient returns a Client logging to logger (nil for no logging).
func NewClient(logger *zap.Logger, cfg Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	r := resty.New().
		SetLogger(logger.Sugar()).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetTransport(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
		})
	return &Client{http: r, logger: logger}
}

// Download saves url to dst. The body is written to a temporary file next to
// dst which is only renamed to dst once the download completes, so dst never
// holds a partial archive.
func (c *Client) Download(ctx context.Context, url, dst string) error {
	dst, err := filepath.Abs(dst)
	if err != nil {
		return errors.Wrapf(err, "invalid destination %q", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", dst)
	}
	tmp := dst + ".part"
	c.logger.Info("downloading", zap.String("url", url), zap.String("path", dst))
	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetOutput(tmp).
		Get(url)
	if err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "failed to download %q", url)
	}
	if resp.IsError() {
		_ = os.Remove(tmp)
		return errors.Errorf("failed to download %q: %s", url, resp.Status())
	}
	if err := os.Rename(tmp, dst); err != nil {
		return errors.Wrapf(err, "failed to move download to %q", dst)
	}
	c.logger.Info("download finished", zap.String("path", dst), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Extract unpacks the .tar.gz (or plain .tar) archive into dstDir with
// gomlx's downloader. Archives with entries that would land outside dstDir
// are rejected before anything is written.
func (c *Client) Extract(archive, dstDir string) error {
	abs, err := filepath.Abs(archive)
	if err != nil {
		return errors.Wrapf(err, "invalid archive path %q", archive)
	}
	archive = abs
	base, err := filepath.Abs(dstDir)
	if err != nil {
		return errors.Wrapf(err, "invalid extraction directory %q", dstDir)
	}
	count, err := checkEntries(archive, base)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %q", base)
	}

	c.logger.Info("extracting", zap.String("archive", archive), zap.String("into", base))
	if err := downloader.Untar(base, archive); err != nil {
		return errors.WithMessagef(err, "failed to extract %q", archive)
	}
	c.logger.Info("extraction finished", zap.String("archive", archive), zap.Int("files", count))
	return nil
}

// checkEntries reads the archive headers and returns the number of regular
// files, or an error if an entry escapes base.
func checkEntries(archive, base string) (files int, err error) {
	f, err := os.Open(archive)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open archive %q", archive)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(archive, ".gz") || strings.HasSuffix(archive, ".tgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to read gzip archive %q", archive)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return 0, errors.Wrapf(err, "failed to read archive %q", archive)
		}
		target := filepath.Join(base, hdr.Name)
		if filepath.IsAbs(hdr.Name) || (target != base && !strings.HasPrefix(target, base+string(os.PathSeparator))) {
			return 0, errors.Errorf("archive %q: entry %q escapes %q", archive, hdr.Name, base)
		}
		if hdr.Typeflag == tar.TypeReg {
			files++
		}
	}
}
