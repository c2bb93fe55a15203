package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pxsubmit/internal/config"
	"pxsubmit/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunCompleted(context.Background(), notifications.RunReport{StudyID: "S1"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	report := notifications.RunReport{
		StudyID:        "STUDY1",
		RunID:          "run-1",
		Files:          8,
		Samples:        2,
		TransferStatus: "succeeded",
		Duration:       90 * time.Second,
	}
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "run completed",
			send:          func(s notifications.Service) error { return s.NotifyRunCompleted(context.Background(), report) },
			expectTitle:   "pxsubmit - Run Complete",
			expectMessage: "Study STUDY1: 8 files, 2 samples, transfer succeeded (1m30s)",
			expectTags:    "pxsubmit,run,completed",
		},
		{
			name: "run failed",
			send: func(s notifications.Service) error {
				return s.NotifyRunFailed(context.Background(), report, errors.New("validation failure: proteome P1"))
			},
			expectTitle:    "pxsubmit - Run Failed",
			expectMessage:  "Study STUDY1 failed (run run-1)\nvalidation failure: proteome P1",
			expectTags:     "pxsubmit,error,alert",
			expectPriority: "high",
		},
		{
			name: "transfer failed",
			send: func(s notifications.Service) error {
				r := report
				r.TransferStatus = "auth_failed"
				return s.NotifyTransferFailed(context.Background(), r, "check pride.username and pride.password")
			},
			expectTitle:    "pxsubmit - Transfer Failed",
			expectMessage:  "Upload of study STUDY1 ended with status auth_failed\ncheck pride.username and pride.password",
			expectTags:     "pxsubmit,transfer,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "pxsubmit - Test",
			expectMessage:  "Notification system test",
			expectTags:     "pxsubmit,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := newCaptureServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)

			if err := tt.send(svc); err != nil {
				t.Fatalf("send: %v", err)
			}
			if len(*got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(*got))
			}
			req := (*got)[0]
			if req.title != tt.expectTitle {
				t.Fatalf("title = %q, want %q", req.title, tt.expectTitle)
			}
			if req.body != tt.expectMessage {
				t.Fatalf("body = %q, want %q", req.body, tt.expectMessage)
			}
			if req.tags != tt.expectTags {
				t.Fatalf("tags = %q, want %q", req.tags, tt.expectTags)
			}
			if req.priority != tt.expectPriority {
				t.Fatalf("priority = %q, want %q", req.priority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403: nope") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
