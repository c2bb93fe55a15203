// Package osdf reads study records from an OSDF REST endpoint.
//
// The Client speaks the raw node API (node lookup, OQL linkage queries and
// the info endpoint) with basic auth, pacing every request through a rate
// limiter and retrying server errors. Repository layers the study hierarchy
// on top and decodes preparation and proteome nodes into study records.
package osdf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pxsubmit/internal/logging"
	"pxsubmit/internal/ratelimit"
	"pxsubmit/internal/services"
)

// ErrNotFound is returned when a node id does not exist.
var ErrNotFound = errors.New("osdf node not found")

// Config describes how to reach the database.
type Config struct {
	BaseURL    string
	Namespace  string
	Username   string
	Password   string
	Timeout    time.Duration
	MaxRetries int
}

// Client is a thin OSDF REST client.
type Client struct {
	baseURL    string
	namespace  string
	username   string
	password   string
	maxRetries int
	httpClient *http.Client
	limiter    ratelimit.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter overrides the request limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "osdf")
	}
}

// NewClient constructs a client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		namespace:  cfg.Namespace,
		username:   cfg.Username,
		password:   cfg.Password,
		maxRetries: max(cfg.MaxRetries, 0),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.New(ratelimit.DefaultConfig()),
		logger:     logging.NewComponentLogger(nil, "osdf"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Info is the payload of the /info endpoint.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	APIVersion  string `json:"api_version"`
	Admin       string `json:"admin_contact_email1"`
}

// Info checks connectivity and credentials.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Node fetches one node by id.
func (c *Client) Node(ctx context.Context, id string) (Node, error) {
	var node Node
	if err := c.do(ctx, http.MethodGet, "/nodes/"+url.PathEscape(id), nil, &node); err != nil {
		return Node{}, fmt.Errorf("node %s: %w", id, err)
	}
	return node, nil
}

type queryPage struct {
	Total   int    `json:"search_result_total"`
	Count   int    `json:"result_count"`
	Page    int    `json:"page"`
	Results []Node `json:"results"`
}

// Query runs an OQL statement and returns every page of results in the order
// the database returns them.
func (c *Client) Query(ctx context.Context, oql string) ([]Node, error) {
	var nodes []Node
	for page := 1; ; page++ {
		path := "/nodes/oql/" + url.PathEscape(c.namespace)
		if page > 1 {
			path += "/page/" + strconv.Itoa(page)
		}
		var result queryPage
		if err := c.do(ctx, http.MethodPost, path, []byte(oql), &result); err != nil {
			return nil, fmt.Errorf("query %q: %w", oql, err)
		}
		nodes = append(nodes, result.Results...)
		if len(result.Results) == 0 || len(nodes) >= result.Total {
			return nodes, nil
		}
	}
}

// Linked returns nodes of nodeType whose linkage field points at id.
func (c *Client) Linked(ctx context.Context, nodeType, linkage, id string) ([]Node, error) {
	return c.Query(ctx, LinkageQuery(nodeType, linkage, id))
}

// LinkageQuery builds the OQL statement selecting nodeType nodes linked to id.
func LinkageQuery(nodeType, linkage, id string) string {
	return fmt.Sprintf(`"%s"[node_type] && "%s"[linkage.%s]`, nodeType, id, linkage)
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrNotFound) && !errors.Is(err, services.ErrAuthentication)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	return ratelimit.Retry(ctx, c.limiter, c.maxRetries, retryable, func(attempt int) error {
		if attempt > 0 {
			c.logger.Debug("retrying osdf request", logging.String("path", path), logging.Int("attempt", attempt))
		}
		return c.once(ctx, method, path, body, out)
	})
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrAuthentication, "osdf", path, "check OSDF username and password", nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
