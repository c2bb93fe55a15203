package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pxsubmit/internal/config"
)

// ValidDescription is a project description inside the accepted length range.
var ValidDescription = strings.Repeat("Proteomes from stool samples. ", 3)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults credentials and project metadata and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SubmissionDir = filepath.Join(base, "submissions")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CredentialsFile = ""
	cfgVal.OSDF.BaseURL = "http://127.0.0.1:0"
	cfgVal.OSDF.Username = "dcc"
	cfgVal.OSDF.Password = "dcc-pw"
	cfgVal.OSDF.RequestsPerSecond = 1000
	cfgVal.OSDF.Burst = 1000
	cfgVal.Validator.ConverterJar = filepath.Join(base, "pg-converter.jar")
	cfgVal.Pride.Username = "pride"
	cfgVal.Pride.Password = "pride-pw"
	cfgVal.Pride.Server = "upload.example.org"
	cfgVal.Pride.Directory = "upload_dir"
	cfgVal.Project = config.Project{
		SubmitterName:        "Test Submitter",
		SubmitterEmail:       "submitter@example.org",
		SubmitterAffiliation: "Example Institute",
		LabHeadName:          "Lab Head",
		LabHeadEmail:         "head@example.org",
		LabHeadAffiliation:   "Example Institute",
		SubmitterPrideLogin:  "submitter@example.org",
		Title:                "Test project",
		Description:          ValidDescription,
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOSDFURL points the study database client at a test server.
func WithOSDFURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OSDF.BaseURL = strings.TrimRight(url, "/")
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ascp and java are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ascp", "java"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
