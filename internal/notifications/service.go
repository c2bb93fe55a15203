package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pxsubmit/internal/config"
)

const userAgent = "pxsubmit/0.1.0"

// RunReport is the subset of a finished run included in notifications.
type RunReport struct {
	StudyID        string
	RunID          string
	Files          int
	Samples        int
	TransferStatus string
	Duration       time.Duration
}

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyRunCompleted(ctx context.Context, report RunReport) error
	NotifyRunFailed(ctx context.Context, report RunReport, err error) error
	NotifyTransferFailed(ctx context.Context, report RunReport, detail string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, report RunReport) error {
	transfer := report.TransferStatus
	if transfer == "" {
		transfer = "skipped"
	}
	data := payload{
		title: "pxsubmit - Run Complete",
		message: fmt.Sprintf("Study %s: %d files, %d samples, transfer %s (%s)",
			report.StudyID, report.Files, report.Samples, transfer, report.Duration.Round(time.Second)),
		tags: []string{"pxsubmit", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, report RunReport, err error) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Study %s failed", report.StudyID)
	if report.RunID != "" {
		fmt.Fprintf(&builder, " (run %s)", report.RunID)
	}
	if err != nil {
		builder.WriteString("\n")
		builder.WriteString(err.Error())
	}
	data := payload{
		title:    "pxsubmit - Run Failed",
		message:  builder.String(),
		tags:     []string{"pxsubmit", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTransferFailed(ctx context.Context, report RunReport, detail string) error {
	message := fmt.Sprintf("Upload of study %s ended with status %s", report.StudyID, report.TransferStatus)
	if detail = strings.TrimSpace(detail); detail != "" {
		message += "\n" + detail
	}
	data := payload{
		title:    "pxsubmit - Transfer Failed",
		message:  message,
		tags:     []string{"pxsubmit", "transfer", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "pxsubmit - Test",
		message:  "Notification system test",
		tags:     []string{"pxsubmit", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunReport) error           { return nil }
func (noopService) NotifyRunFailed(context.Context, RunReport, error) error       { return nil }
func (noopService) NotifyTransferFailed(context.Context, RunReport, string) error { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
