package config

const (
	defaultConfigPath            = "~/.config/pxsubmit/config.toml"
	defaultSubmissionDir         = "~/.local/share/pxsubmit/submissions"
	defaultStateDir              = "~/.local/share/pxsubmit"
	defaultLogDir                = "~/.local/share/pxsubmit/logs"
	defaultCredentialsFile       = "~/.anadama_pride"
	defaultOSDFBaseURL           = "https://osdf.ihmpdcc.org"
	defaultOSDFNamespace         = "ihmp"
	defaultOSDFRequestsPerSecond = 5
	defaultOSDFBurst             = 5
	defaultOSDFTimeoutSeconds    = 30
	defaultAsperaBinary          = "ascp"
	defaultAsperaDownloadTimeout = 3600
	defaultAsperaUploadTimeout   = 6 * 3600
	defaultAsperaRateLimit       = "500M"
	defaultAsperaMaxRetries      = 2
	defaultFetchTimeoutSeconds   = 600
	defaultFetchMaxRetries       = 3
	defaultJavaBinary            = "java"
	defaultConverterJar          = "~/.local/share/pxsubmit/pg-converter-1.2/pg-converter.jar"
	defaultValidatorTimeout      = 1800
	defaultPrideServer           = "ascp.ebi.ac.uk"
	defaultS3Region              = "us-east-1"
	defaultNotifyTimeoutSeconds  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	projectDescriptionMinLength  = 50
	projectDescriptionMaxLength  = 500
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SubmissionDir:   defaultSubmissionDir,
			StateDir:        defaultStateDir,
			LogDir:          defaultLogDir,
			CredentialsFile: defaultCredentialsFile,
		},
		OSDF: OSDF{
			BaseURL:           defaultOSDFBaseURL,
			Namespace:         defaultOSDFNamespace,
			RequestsPerSecond: defaultOSDFRequestsPerSecond,
			Burst:             defaultOSDFBurst,
			TimeoutSeconds:    defaultOSDFTimeoutSeconds,
		},
		Aspera: Aspera{
			Binary:                 defaultAsperaBinary,
			DownloadTimeoutSeconds: defaultAsperaDownloadTimeout,
			UploadTimeoutSeconds:   defaultAsperaUploadTimeout,
			RateLimit:              defaultAsperaRateLimit,
			MaxRetries:             defaultAsperaMaxRetries,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			MaxRetries:     defaultFetchMaxRetries,
		},
		Validator: Validator{
			JavaBinary:     defaultJavaBinary,
			ConverterJar:   defaultConverterJar,
			TimeoutSeconds: defaultValidatorTimeout,
		},
		Transfer: Transfer{
			RequireSuccess: true,
		},
		S3: S3{
			Region: defaultS3Region,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
