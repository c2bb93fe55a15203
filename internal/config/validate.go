package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOSDF(); err != nil {
		return err
	}
	if err := c.validateAspera(); err != nil {
		return err
	}
	if err := c.validateValidator(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateProject(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateCollect ensures the settings needed to read a study are present.
func (c *Config) ValidateCollect() error {
	if c.OSDF.Username == "" || c.OSDF.Password == "" {
		return c.missing("osdf.username and osdf.password", "OSDF_USERNAME/OSDF_PASSWORD or dcc_user/dcc_pw")
	}
	if c.Project.Description == "" {
		return c.missing("project.description", "project_description")
	}
	return nil
}

// ValidateSubmit ensures the settings needed to upload a submission are present.
func (c *Config) ValidateSubmit() error {
	if c.Pride.Username == "" || c.Pride.Password == "" {
		return c.missing("pride.username and pride.password", "PRIDE_USERNAME/PRIDE_PASSWORD or pride_user/pride_pw")
	}
	if c.Pride.Directory == "" {
		return c.missing("pride.directory", "pride_directory")
	}
	return nil
}

func (c *Config) missing(field, alternatives string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("%s must be set. Use %s or edit %s (create with 'pxsubmit config init')", field, alternatives, defaultPath)
}

func (c *Config) validateOSDF() error {
	if c.OSDF.BaseURL == "" {
		return errors.New("osdf.base_url must be set")
	}
	parsed, err := url.Parse(c.OSDF.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("osdf.base_url %q is not an absolute URL", c.OSDF.BaseURL)
	}
	if c.OSDF.Namespace == "" {
		return errors.New("osdf.namespace must be set")
	}
	if c.OSDF.RequestsPerSecond <= 0 {
		return errors.New("osdf.requests_per_second must be positive")
	}
	if c.OSDF.TimeoutSeconds <= 0 {
		return errors.New("osdf.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateAspera() error {
	if c.Aspera.DownloadTimeoutSeconds <= 0 {
		return errors.New("aspera.download_timeout_seconds must be positive")
	}
	if c.Aspera.UploadTimeoutSeconds <= 0 {
		return errors.New("aspera.upload_timeout_seconds must be positive")
	}
	if c.Aspera.MaxRetries < 0 {
		return errors.New("aspera.max_retries must be >= 0")
	}
	if strings.ContainsAny(c.Aspera.RateLimit, " \t") {
		return fmt.Errorf("aspera.rate_limit %q must not contain whitespace", c.Aspera.RateLimit)
	}
	return nil
}

func (c *Config) validateValidator() error {
	if c.Validator.ConverterJar == "" {
		return errors.New("validator.converter_jar must be set")
	}
	if c.Validator.TimeoutSeconds <= 0 {
		return errors.New("validator.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.TimeoutSeconds <= 0 {
		return errors.New("fetch.timeout_seconds must be positive")
	}
	if c.Fetch.MaxRetries < 0 {
		return errors.New("fetch.max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateProject() error {
	if c.Project.Description == "" {
		return nil
	}
	n := utf8.RuneCountInString(c.Project.Description)
	if n < projectDescriptionMinLength || n > projectDescriptionMaxLength {
		return fmt.Errorf("project.description must be between %d and %d characters, got %d",
			projectDescriptionMinLength, projectDescriptionMaxLength, n)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := strings.TrimSpace(c.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic %q is not an absolute URL", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
