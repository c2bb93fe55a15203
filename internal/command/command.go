// Package command runs external tools such as ascp and java behind an
// Executor interface so callers can substitute stubs in tests.
package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Spec describes one invocation.
type Spec struct {
	Binary string
	Args   []string
	// Env entries are appended to the current process environment.
	Env []string
	Dir string
	// OnLine receives every stdout and stderr line as it is produced.
	OnLine func(line string)
}

// Result captures the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs a command to completion. A non-zero exit is reported in
// Result.ExitCode with a nil error; err is reserved for failures to start,
// read output or wait, including context cancellation.
type Executor interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// Local runs commands on the host.
type Local struct{}

func (Local) Run(ctx context.Context, spec Spec) (Result, error) {
	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...) //nolint:gosec
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", spec.Binary, err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		once    sync.Once
		scanErr error
		outBuf  bytes.Buffer
		errBuf  bytes.Buffer
	)
	scan := func(r io.Reader, buf *bytes.Buffer) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			buf.WriteString(line)
			buf.WriteByte('\n')
			if spec.OnLine != nil {
				spec.OnLine(line)
			}
			mu.Unlock()
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}
	wg.Add(2)
	go scan(stdout, &outBuf)
	go scan(stderr, &errBuf)
	wg.Wait()

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return Result{}, fmt.Errorf("scan output: %w", scanErr)
	}

	result := Result{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s: %w", spec.Binary, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("wait %s: %w", spec.Binary, err)
	}
	return result, nil
}
