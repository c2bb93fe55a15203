package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pxsubmit/internal/preflight"
)

func TestCheckNotificationsDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	res := checkNotifications(context.Background(), env.cfg)
	if !res.Passed {
		t.Fatalf("disabled notifications should pass: %+v", res)
	}
}

func TestCheckNotificationsSendsTest(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := setupCLITestEnv(t)
	env.cfg.Notifications.NtfyTopic = srv.URL
	res := checkNotifications(context.Background(), env.cfg)
	if !res.Passed || hits != 1 {
		t.Fatalf("expected one delivered test notification, got %+v hits=%d", res, hits)
	}
}

func TestRenderPreflight(t *testing.T) {
	out := renderPreflight([]preflight.Result{
		{Name: "ascp", Passed: true, Detail: "ascp version 4.4"},
		{Name: "Study database", Detail: "connection refused"},
	})
	requireContains(t, out, "ascp version 4.4")
	requireContains(t, out, "connection refused")
	requireContains(t, out, "no")
}
