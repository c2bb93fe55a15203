package deps

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pxsubmit/internal/command"
)

// MinJavaMajor is the oldest Java release the converter runs on (1.8).
const MinJavaMajor = 8

const probeTimeout = 10 * time.Second

var javaVersionPattern = regexp.MustCompile(`version "([^"]+)"`)

// ParseJavaVersion extracts the quoted version from `java -version` output
// and returns it with its major release number. Legacy "1.x" versions map to x.
func ParseJavaVersion(output string) (int, string, error) {
	m := javaVersionPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, "", fmt.Errorf("no version string in %q", firstLine(output))
	}
	raw := m[1]
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '.' || r == '_' || r == '-' || r == '+' })
	if len(parts) == 0 {
		return 0, raw, fmt.Errorf("unparseable java version %q", raw)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, raw, fmt.Errorf("unparseable java version %q", raw)
	}
	if major == 1 && len(parts) > 1 {
		if minor, err := strconv.Atoi(parts[1]); err == nil {
			major = minor
		}
	}
	return major, raw, nil
}

// CheckJava runs `java -version` and requires MinJavaMajor or newer.
func CheckJava(ctx context.Context, exec command.Executor, binary string) Status {
	status := Status{Name: "Java", Command: binary, Description: "Runs the PRIDE converter validator"}
	res, err := probe(ctx, exec, binary, "-version")
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	// java prints its version banner on stderr.
	major, raw, err := ParseJavaVersion(res.Stderr + "\n" + res.Stdout)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	if major < MinJavaMajor {
		status.Detail = fmt.Sprintf("version %s found, 1.%d or newer required", raw, MinJavaMajor)
		return status
	}
	status.Available = true
	status.Detail = "version " + raw
	return status
}

// CheckAscp runs `ascp -A` to confirm the transfer client starts.
func CheckAscp(ctx context.Context, exec command.Executor, binary string) Status {
	status := Status{Name: "ascp", Command: binary, Description: "Downloads archive files and uploads submissions"}
	res, err := probe(ctx, exec, binary, "-A")
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	if res.ExitCode != 0 {
		status.Detail = fmt.Sprintf("ascp -A exited with status %d", res.ExitCode)
		return status
	}
	status.Available = true
	status.Detail = firstLine(res.Stdout)
	return status
}

// CheckFile reports whether path is a readable regular file.
func CheckFile(name, path, description string) Status {
	status := Status{Name: name, Command: path, Description: description}
	if strings.TrimSpace(path) == "" {
		status.Detail = "path not configured"
		return status
	}
	info, err := os.Stat(path)
	if err != nil {
		status.Detail = fmt.Sprintf("%s not found", path)
		return status
	}
	if !info.Mode().IsRegular() {
		status.Detail = fmt.Sprintf("%s is not a file", path)
		return status
	}
	status.Available = true
	return status
}

func probe(ctx context.Context, exec command.Executor, binary string, args ...string) (command.Result, error) {
	if strings.TrimSpace(binary) == "" {
		return command.Result{}, fmt.Errorf("command not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	res, err := exec.Run(ctx, command.Spec{Binary: binary, Args: args})
	if err != nil {
		return res, fmt.Errorf("run %s: %w", binary, err)
	}
	return res, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
