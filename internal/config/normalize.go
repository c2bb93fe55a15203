package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.applyEnv()
	if err := c.applyCredentialsFile(); err != nil {
		return err
	}
	c.normalizeOSDF()
	c.normalizePride()
	if err := c.normalizeValidator(); err != nil {
		return err
	}
	c.normalizeProject()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SubmissionDir, err = expandPath(c.Paths.SubmissionDir); err != nil {
		return fmt.Errorf("paths.submission_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CredentialsFile, err = expandPath(strings.TrimSpace(c.Paths.CredentialsFile)); err != nil {
		return fmt.Errorf("paths.credentials_file: %w", err)
	}
	if strings.TrimSpace(c.Metrics.Textfile) != "" {
		if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
			return fmt.Errorf("metrics.textfile: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	fillFromEnv(&c.OSDF.Username, "OSDF_USERNAME")
	fillFromEnv(&c.OSDF.Password, "OSDF_PASSWORD")
	fillFromEnv(&c.Pride.Username, "PRIDE_USERNAME")
	fillFromEnv(&c.Pride.Password, "PRIDE_PASSWORD")
}

func fillFromEnv(target *string, key string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*target = strings.TrimSpace(value)
	}
}

// applyCredentialsFile overlays the legacy key=value credentials file. Values
// only fill settings left empty by the TOML file and environment.
func (c *Config) applyCredentialsFile() error {
	if c.Paths.CredentialsFile == "" {
		return nil
	}
	values, err := ReadCredentialsFile(c.Paths.CredentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("paths.credentials_file: %w", err)
	}
	for key, target := range c.credentialTargets() {
		value := strings.TrimSpace(values[key])
		if value != "" && strings.TrimSpace(*target) == "" {
			*target = value
		}
	}
	return nil
}

func (c *Config) normalizeOSDF() {
	c.OSDF.BaseURL = strings.TrimRight(strings.TrimSpace(c.OSDF.BaseURL), "/")
	c.OSDF.Namespace = strings.TrimSpace(c.OSDF.Namespace)
	if c.OSDF.Burst <= 0 {
		c.OSDF.Burst = 1
	}
}

func (c *Config) normalizePride() {
	c.Pride.Server = strings.TrimSpace(c.Pride.Server)
	if c.Pride.Server == "" {
		c.Pride.Server = defaultPrideServer
	}
	c.Pride.Directory = strings.Trim(strings.TrimSpace(c.Pride.Directory), "/")
}

func (c *Config) normalizeValidator() error {
	c.Validator.JavaBinary = strings.TrimSpace(c.Validator.JavaBinary)
	if c.Validator.JavaBinary == "" {
		c.Validator.JavaBinary = defaultJavaBinary
	}
	var err error
	if c.Validator.ConverterJar, err = expandPath(strings.TrimSpace(c.Validator.ConverterJar)); err != nil {
		return fmt.Errorf("validator.converter_jar: %w", err)
	}
	c.Aspera.Binary = strings.TrimSpace(c.Aspera.Binary)
	if c.Aspera.Binary == "" {
		c.Aspera.Binary = defaultAsperaBinary
	}
	c.Aspera.RateLimit = strings.TrimSpace(c.Aspera.RateLimit)
	if c.Aspera.RateLimit == "" {
		c.Aspera.RateLimit = defaultAsperaRateLimit
	}
	return nil
}

func (c *Config) normalizeProject() {
	p := &c.Project
	for _, field := range []*string{
		&p.SubmitterName, &p.SubmitterEmail, &p.SubmitterAffiliation,
		&p.LabHeadName, &p.LabHeadEmail, &p.LabHeadAffiliation,
		&p.SubmitterPrideLogin, &p.Title, &p.Description, &p.Keywords,
	} {
		*field = strings.TrimSpace(*field)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
