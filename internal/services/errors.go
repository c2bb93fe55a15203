package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLookup             = errors.New("lookup failure")
	ErrDownload           = errors.New("download failure")
	ErrInvalidFormat      = errors.New("invalid format")
	ErrMetadataValidation = errors.New("metadata validation failure")
	ErrValidation         = errors.New("validation failure")
	ErrTransfer           = errors.New("transfer failure")
	ErrAuthentication     = errors.New("authentication failure")
	ErrExternalTool       = errors.New("external tool error")
	ErrConfiguration      = errors.New("configuration error")
	ErrTimeout            = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps an error to the short classification stored in the run
// ledger and attached to error logs.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLookup):
		return "lookup_failure"
	case errors.Is(err, ErrDownload):
		return "download_failure"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrMetadataValidation):
		return "metadata_validation_failure"
	case errors.Is(err, ErrValidation):
		return "validation_failure"
	case errors.Is(err, ErrAuthentication):
		return "authentication_failure"
	case errors.Is(err, ErrTransfer):
		return "transfer_failure"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal_error"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
