package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"pxsubmit/internal/aspera"
	"pxsubmit/internal/ratelimit"
	"pxsubmit/internal/services"
)

// Downloader is the part of the ascp client used for downloads.
type Downloader interface {
	Download(ctx context.Context, req aspera.DownloadRequest) (string, error)
}

// AsperaFetcher downloads fasp:// URLs with ascp using archive credentials.
// Failed transfers are retried unless the server rejected the credentials.
type AsperaFetcher struct {
	client     Downloader
	user       string
	password   string
	maxRetries int
	limiter    ratelimit.Limiter
}

func NewAsperaFetcher(client Downloader, user, password string, maxRetries int, limiter ratelimit.Limiter) *AsperaFetcher {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{MaxRetries: maxRetries})
	}
	return &AsperaFetcher{
		client:     client,
		user:       user,
		password:   password,
		maxRetries: max(maxRetries, 0),
		limiter:    limiter,
	}
}

func (f *AsperaFetcher) Fetch(ctx context.Context, src *url.URL, dest string) error {
	req := aspera.DownloadRequest{
		Host:       src.Host,
		User:       f.user,
		Password:   f.password,
		RemotePath: src.Path,
		LocalDir:   filepath.Dir(dest),
	}
	var got string
	retryable := func(err error) bool {
		return !errors.Is(err, services.ErrAuthentication) && ctx.Err() == nil
	}
	err := ratelimit.Retry(ctx, f.limiter, f.maxRetries, retryable, func(int) error {
		var err error
		got, err = f.client.Download(ctx, req)
		return err
	})
	if err != nil {
		return err
	}
	if filepath.Clean(got) != filepath.Clean(dest) {
		return fmt.Errorf("ascp stored %s, expected %s", got, dest)
	}
	return nil
}
