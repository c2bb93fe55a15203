// Package aspera wraps the ascp command line client for single-file
// downloads from the data archive and bulk directory uploads to PRIDE.
package aspera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"pxsubmit/internal/command"
	"pxsubmit/internal/logging"
	"pxsubmit/internal/services"
)

// PasswordEnv is the environment variable ascp reads the password from.
const PasswordEnv = "ASPERA_SCP_PASS"

// AuthFailurePattern matches the ascp stderr line reporting rejected credentials.
var AuthFailurePattern = regexp.MustCompile(`(?m)^.*failed to authenticate`)

// Client runs ascp.
type Client struct {
	binary          string
	rateLimit       string
	downloadTimeout time.Duration
	uploadTimeout   time.Duration
	exec            command.Executor
	logger          *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithTimeouts bounds downloads and uploads. Zero leaves a direction unbounded.
func WithTimeouts(download, upload time.Duration) Option {
	return func(c *Client) {
		c.downloadTimeout = download
		c.uploadTimeout = upload
	}
}

// WithRateLimit sets the -l target rate, such as "500M".
func WithRateLimit(rate string) Option {
	return func(c *Client) {
		if rate = strings.TrimSpace(rate); rate != "" {
			c.rateLimit = rate
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "aspera")
	}
}

// New constructs an ascp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ascp binary required")
	}
	c := &Client{
		binary:    binary,
		rateLimit: "500M",
		exec:      command.Local{},
		logger:    logging.NewComponentLogger(nil, "aspera"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DownloadRequest names one remote file.
type DownloadRequest struct {
	Host       string
	User       string
	Password   string
	RemotePath string
	LocalDir   string
}

// Download fetches one file into LocalDir and returns its local path.
func (c *Client) Download(ctx context.Context, req DownloadRequest) (string, error) {
	name := path.Base(req.RemotePath)
	if name == "." || name == "/" || name == "" {
		return "", services.Wrap(services.ErrDownload, "fetch", "ascp download",
			fmt.Sprintf("remote path %q has no file name", req.RemotePath), nil)
	}
	target := filepath.Join(req.LocalDir, name)

	args := []string{"-QT", "-l" + c.rateLimit, "-k", "2"}
	if req.User != "" {
		args = append(args, fmt.Sprintf("%s@%s:%s", req.User, req.Host, req.RemotePath))
	} else {
		args = append(args, fmt.Sprintf("%s:%s", req.Host, req.RemotePath))
	}
	args = append(args, req.LocalDir)

	res, err := c.run(ctx, c.downloadTimeout, args, req.Password)
	if err != nil {
		return "", services.Wrap(services.ErrDownload, "fetch", "ascp download", name, err)
	}
	if res.ExitCode != 0 {
		return "", services.Wrap(services.ErrDownload, "fetch", "ascp download",
			fmt.Sprintf("%s: exit status %d", name, res.ExitCode), classify(res))
	}
	if _, statErr := os.Stat(target); statErr != nil {
		return "", services.Wrap(services.ErrDownload, "fetch", "ascp download",
			fmt.Sprintf("%s not present after transfer", name), statErr)
	}
	return target, nil
}

// UploadRequest names the directory to push and its destination.
type UploadRequest struct {
	LocalDir  string
	User      string
	Password  string
	Server    string
	RemoteDir string
}

// UploadArgs returns the ascp arguments for a bulk upload.
func (c *Client) UploadArgs(req UploadRequest) []string {
	return []string{
		"-QT",
		"-l" + c.rateLimit,
		"--file-manifest=text",
		"-k", "2",
		"-o", "Overwrite=diff",
		req.LocalDir,
		fmt.Sprintf("%s@%s:/%s", req.User, req.Server, strings.TrimPrefix(req.RemoteDir, "/")),
	}
}

// Upload pushes LocalDir in one ascp invocation. A non-zero exit is returned
// in the result, not as an error.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (command.Result, error) {
	return c.run(ctx, c.uploadTimeout, c.UploadArgs(req), req.Password)
}

// IsAuthFailure reports whether stderr carries the authentication failure message.
func IsAuthFailure(stderr string) bool {
	return AuthFailurePattern.MatchString(stderr)
}

func classify(res command.Result) error {
	if IsAuthFailure(res.Stderr) {
		return services.ErrAuthentication
	}
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func (c *Client) run(ctx context.Context, timeout time.Duration, args []string, password string) (command.Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	c.logger.Debug("running ascp", logging.String("args", strings.Join(args, " ")))
	res, err := c.exec.Run(ctx, command.Spec{
		Binary: c.binary,
		Args:   args,
		Env:    []string{PasswordEnv + "=" + password},
		OnLine: func(line string) {
			c.logger.Debug("ascp output", logging.String("line", line))
		},
	})
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return res, services.Wrap(services.ErrTimeout, "aspera", "ascp", fmt.Sprintf("exceeded %s", timeout), err)
	}
	return res, err
}
