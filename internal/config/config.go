package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SubmissionDir   string `toml:"submission_dir"`
	StateDir        string `toml:"state_dir"`
	LogDir          string `toml:"log_dir"`
	CredentialsFile string `toml:"credentials_file"`
}

// OSDF contains connection settings for the study database.
type OSDF struct {
	BaseURL           string  `toml:"base_url"`
	Namespace         string  `toml:"namespace"`
	Username          string  `toml:"username"`
	Password          string  `toml:"password"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Aspera contains settings for the ascp transfer client.
type Aspera struct {
	Binary                 string `toml:"binary"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
	UploadTimeoutSeconds   int    `toml:"upload_timeout_seconds"`
	RateLimit              string `toml:"rate_limit"`
	MaxRetries             int    `toml:"max_retries"`
}

// Fetch contains settings for plain HTTP downloads.
type Fetch struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	MaxRetries     int `toml:"max_retries"`
}

// Validator contains settings for the proteomics converter used to validate result/peak pairs.
type Validator struct {
	JavaBinary     string `toml:"java_binary"`
	ConverterJar   string `toml:"converter_jar"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pride contains the repository upload target and credentials.
type Pride struct {
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Server    string `toml:"server"`
	Directory string `toml:"directory"`
}

// Transfer controls how upload failures affect a run.
type Transfer struct {
	RequireSuccess bool `toml:"require_success"`
}

// Project holds the submitter-supplied project metadata.
type Project struct {
	SubmitterName        string `toml:"submitter_name"`
	SubmitterEmail       string `toml:"submitter_email"`
	SubmitterAffiliation string `toml:"submitter_affiliation"`
	LabHeadName          string `toml:"lab_head_name"`
	LabHeadEmail         string `toml:"lab_head_email"`
	LabHeadAffiliation   string `toml:"lab_head_affiliation"`
	SubmitterPrideLogin  string `toml:"submitter_pride_login"`
	Title                string `toml:"title"`
	Description          string `toml:"description"`
	Keywords             string `toml:"keywords"`
}

// Collect controls the collection stage.
type Collect struct {
	// Clean removes an existing submission directory before collecting.
	Clean bool `toml:"clean"`
}

// S3 configures the s3:// fetcher.
type S3 struct {
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	PathStyle bool   `toml:"path_style"`
}

// Metrics controls the Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Notifications configures ntfy run announcements.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for pxsubmit.
//
// Configuration sections by subsystem:
//   - Paths: submission, state and log directories plus the legacy credentials file
//   - OSDF: study database endpoint, credentials and request rate
//   - Aspera: ascp binary, timeouts and bandwidth cap
//   - Fetch: HTTP download timeout and retries
//   - Validator: java binary and converter jar
//   - Pride: upload server, directory and credentials
//   - Transfer: whether a failed upload fails the run
//   - Project: submitter identity and project description
//   - Collect: submission directory handling
//   - S3: s3:// source settings
//   - Metrics: Prometheus textfile output
//   - Notifications: ntfy topic for run announcements
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	OSDF          OSDF          `toml:"osdf"`
	Aspera        Aspera        `toml:"aspera"`
	Fetch         Fetch         `toml:"fetch"`
	Validator     Validator     `toml:"validator"`
	Pride         Pride         `toml:"pride"`
	Transfer      Transfer      `toml:"transfer"`
	Project       Project       `toml:"project"`
	Collect       Collect       `toml:"collect"`
	S3            S3            `toml:"s3"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pxsubmit.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SubmissionDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StudyDir returns the submission directory for one study.
func (c *Config) StudyDir(studyID string) string {
	return filepath.Join(c.Paths.SubmissionDir, studyID)
}

// LedgerPath returns the run ledger database location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// OSDFTimeout returns the per-request timeout for study database calls.
func (c *Config) OSDFTimeout() time.Duration {
	return time.Duration(c.OSDF.TimeoutSeconds) * time.Second
}

// ValidatorTimeout bounds a single converter invocation.
func (c *Config) ValidatorTimeout() time.Duration {
	return time.Duration(c.Validator.TimeoutSeconds) * time.Second
}

// FetchTimeout bounds a single HTTP download.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// DownloadTimeout bounds a single ascp download.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Aspera.DownloadTimeoutSeconds) * time.Second
}

// UploadTimeout bounds the bulk ascp upload.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Aspera.UploadTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
