package collect

import (
	"context"
	"fmt"
	"log/slog"

	"pxsubmit/internal/aspera"
	"pxsubmit/internal/config"
	"pxsubmit/internal/fetch"
	"pxsubmit/internal/notifications"
	"pxsubmit/internal/osdf"
	"pxsubmit/internal/ratelimit"
	"pxsubmit/internal/transfer"
	"pxsubmit/internal/validator"
)

// NewStudyClient builds the rate-limited study database client.
func NewStudyClient(cfg *config.Config, logger *slog.Logger) *osdf.Client {
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSec: cfg.OSDF.RequestsPerSecond,
		Burst:          cfg.OSDF.Burst,
		MaxRetries:     cfg.Fetch.MaxRetries,
	})
	return osdf.NewClient(osdf.Config{
		BaseURL:    cfg.OSDF.BaseURL,
		Namespace:  cfg.OSDF.Namespace,
		Username:   cfg.OSDF.Username,
		Password:   cfg.OSDF.Password,
		Timeout:    cfg.OSDFTimeout(),
		MaxRetries: cfg.Fetch.MaxRetries,
	}, osdf.WithLimiter(limiter), osdf.WithLogger(logger))
}

// NewAsperaClient builds the ascp wrapper.
func NewAsperaClient(cfg *config.Config, logger *slog.Logger) (*aspera.Client, error) {
	return aspera.New(cfg.Aspera.Binary,
		aspera.WithTimeouts(cfg.DownloadTimeout(), cfg.UploadTimeout()),
		aspera.WithRateLimit(cfg.Aspera.RateLimit),
		aspera.WithLogger(logger),
	)
}

// NewDispatcher builds the upload dispatcher for the configured PRIDE account.
func NewDispatcher(cfg *config.Config, client *aspera.Client, logger *slog.Logger) *transfer.Dispatcher {
	return transfer.NewDispatcher(client, transfer.Target{
		User:      cfg.Pride.Username,
		Password:  cfg.Pride.Password,
		Server:    cfg.Pride.Server,
		Directory: cfg.Pride.Directory,
	},
		transfer.WithRequireSuccess(cfg.Transfer.RequireSuccess),
		transfer.WithRetries(cfg.Aspera.MaxRetries, nil),
		transfer.WithLogger(logger),
	)
}

// NewRouter registers the fasp, http(s) and s3 fetchers.
func NewRouter(ctx context.Context, cfg *config.Config, client *aspera.Client, logger *slog.Logger) (*fetch.Router, error) {
	router := fetch.NewRouter(logger)
	router.Register(fetch.NewAsperaFetcher(client, cfg.OSDF.Username, cfg.OSDF.Password, cfg.Aspera.MaxRetries, nil), "fasp")
	router.Register(fetch.NewHTTPFetcher(cfg.FetchTimeout(), cfg.Fetch.MaxRetries), "http", "https")
	s3Fetcher, err := fetch.NewS3Fetcher(ctx, fetch.S3Config{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		PathStyle: cfg.S3.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	router.Register(s3Fetcher, "s3")
	return router, nil
}

// Build wires a Pipeline from configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	asp, err := NewAsperaClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("aspera client: %w", err)
	}
	router, err := NewRouter(ctx, cfg, asp, logger)
	if err != nil {
		return nil, fmt.Errorf("fetch router: %w", err)
	}
	v, err := validator.New(cfg.Validator.JavaBinary, cfg.Validator.ConverterJar, cfg.ValidatorTimeout(),
		validator.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	repo := osdf.NewRepository(NewStudyClient(cfg, logger))
	opts = append([]Option{WithLogger(logger), WithNotifier(notifications.NewService(cfg))}, opts...)
	return NewPipeline(cfg, repo, router, v, NewDispatcher(cfg, asp, logger), opts...), nil
}
