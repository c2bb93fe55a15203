package services

import "context"

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	studyIDKey  contextKey = "study_id"
	proteomeKey contextKey = "proteome_id"
	stageKey    contextKey = "stage"
)

// WithRunID annotates context with the submission run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the submission run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStudyID annotates context with the study being submitted.
func WithStudyID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, studyIDKey, id)
}

// StudyIDFromContext returns the study identifier if present.
func StudyIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(studyIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithProteomeID annotates context with the proteome currently being collected.
func WithProteomeID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, proteomeKey, id)
}

// ProteomeIDFromContext returns the proteome identifier if present.
func ProteomeIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(proteomeKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
