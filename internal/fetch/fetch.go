// Package fetch downloads proteome files into the submission directory.
//
// A Router picks a transport by URL scheme (fasp via ascp, http(s), s3) and
// skips any file already present at its destination, which keeps repeated
// runs over the same directory free of network traffic.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"pxsubmit/internal/logging"
	"pxsubmit/internal/services"
)

// Fetcher copies the object at src to the local file dest.
type Fetcher interface {
	Fetch(ctx context.Context, src *url.URL, dest string) error
}

// Result describes one routed download.
type Result struct {
	Path string
	// Fetched is false when an existing file was reused.
	Fetched bool
	Bytes   int64
}

// Router dispatches downloads by URL scheme.
type Router struct {
	fetchers map[string]Fetcher
	logger   *slog.Logger
}

// NewRouter returns an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		fetchers: make(map[string]Fetcher),
		logger:   logging.NewComponentLogger(logger, "fetch"),
	}
}

// Register routes the given schemes to f.
func (r *Router) Register(f Fetcher, schemes ...string) {
	for _, scheme := range schemes {
		r.fetchers[strings.ToLower(scheme)] = f
	}
}

// LocalName returns the file name a URL is stored under: the last segment of its path.
func LocalName(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	return name, nil
}

// Fetch downloads rawURL into dir unless a file of the same name already exists there.
func (r *Router) Fetch(ctx context.Context, rawURL, dir string) (Result, error) {
	name, err := LocalName(rawURL)
	if err != nil {
		return Result{}, services.Wrap(services.ErrDownload, "fetch", "resolve", "", err)
	}
	dest := filepath.Join(dir, name)

	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() {
		r.logger.Debug("reusing existing file", logging.String("path", dest))
		return Result{Path: dest, Bytes: info.Size()}, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Result{}, services.Wrap(services.ErrDownload, "fetch", "stat", name, err)
	}

	u, _ := url.Parse(strings.TrimSpace(rawURL))
	fetcher, ok := r.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return Result{}, services.Wrap(services.ErrDownload, "fetch", "route",
			fmt.Sprintf("%s: unsupported scheme %q", name, u.Scheme), nil)
	}

	r.logger.Info("downloading file", logging.String("file", name), logging.String("dir", dir))
	if err := fetcher.Fetch(ctx, u, dest); err != nil {
		if errors.Is(err, services.ErrDownload) {
			return Result{}, err
		}
		return Result{}, services.Wrap(services.ErrDownload, "fetch", u.Scheme, name, err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return Result{}, services.Wrap(services.ErrDownload, "fetch", u.Scheme,
			fmt.Sprintf("%s missing after download", name), err)
	}
	r.logger.Info("download complete", logging.String("file", name), logging.Int64("bytes", info.Size()))
	return Result{Path: dest, Fetched: true, Bytes: info.Size()}, nil
}

// writeFile streams r into dest through a temporary file in the same directory.
func writeFile(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(dest), err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(dest), err)
	}
	return nil
}
