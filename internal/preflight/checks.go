package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"pxsubmit/internal/command"
	"pxsubmit/internal/config"
	"pxsubmit/internal/deps"
	"pxsubmit/internal/osdf"
	"pxsubmit/internal/services"
)

// InfoClient is the study database endpoint used to confirm connectivity.
type InfoClient interface {
	Info(ctx context.Context) (osdf.Info, error)
}

// CheckStudyDatabase verifies the study database is reachable and accepts
// the configured credentials. It uses a 15-second timeout.
func CheckStudyDatabase(ctx context.Context, client InfoClient) Result {
	const name = "Study database"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	info, err := client.Info(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeDatabaseError(err)}
	}
	detail := "Reachable"
	if info.APIVersion != "" {
		detail = fmt.Sprintf("Reachable (api %s)", info.APIVersion)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckUploadCredentials verifies the repository upload target is configured.
func CheckUploadCredentials(cfg *config.Config) Result {
	const name = "PRIDE upload"

	if err := cfg.ValidateSubmit(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s@%s:/%s", cfg.Pride.Username, cfg.Pride.Server, cfg.Pride.Directory)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the ascp client, the Java runtime and the
// converter jar. Both the check command and run preflight use it.
func CheckSystemDeps(ctx context.Context, cfg *config.Config, exec command.Executor) []deps.Status {
	found := deps.CheckBinaries([]deps.Requirement{
		{Name: "ascp", Command: cfg.Aspera.Binary, Description: "Downloads archive files and uploads submissions"},
		{Name: "Java", Command: cfg.Validator.JavaBinary, Description: "Runs the PRIDE converter validator"},
	})
	results := make([]deps.Status, 0, len(found)+1)
	for _, status := range found {
		if !status.Available {
			results = append(results, status)
			continue
		}
		switch status.Name {
		case "ascp":
			results = append(results, deps.CheckAscp(ctx, exec, status.Command))
		case "Java":
			results = append(results, deps.CheckJava(ctx, exec, status.Command))
		}
	}
	results = append(results, deps.CheckFile("PRIDE converter", cfg.Validator.ConverterJar, "Validates result/peak file pairs"))
	return results
}

// summarizeDatabaseError produces a human-readable summary for connectivity failures.
func summarizeDatabaseError(err error) string {
	if errors.Is(err, services.ErrAuthentication) {
		return "auth failed (check osdf.username and osdf.password)"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (study database unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (study database unreachable)"
	}
	return strings.TrimSpace(err.Error())
}
