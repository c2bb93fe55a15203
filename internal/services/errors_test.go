package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"pxsubmit/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrDownload, "collect", "fetch", "study 42: proteome p1: result.mzid", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"collect", "fetch", "proteome p1", "result.mzid"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrLookup, "walk", "study", "missing", nil), "lookup_failure"},
		{services.Wrap(services.ErrInvalidFormat, "collect", "peak", "peak.txt", nil), "invalid_format"},
		{services.Wrap(services.ErrMetadataValidation, "aggregate", "protocol", "too short", nil), "metadata_validation_failure"},
		{services.Wrap(services.ErrValidation, "validate", "report", "FAILED", nil), "validation_failure"},
		{fmt.Errorf("dispatch: %w", services.ErrAuthentication), "authentication_failure"},
		{services.Wrap(services.ErrTransfer, "transfer", "ascp", "exit 1", nil), "transfer_failure"},
		{errors.New("plain"), "internal_error"},
	}
	for _, tt := range tests {
		if got := services.FailureKind(tt.err); got != tt.want {
			t.Errorf("FailureKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
