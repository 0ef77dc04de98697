package convpipe

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// runResult captures one external tool invocation.
type runResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// runner abstracts process execution so stages can be tested without the
// real conversion tools installed.
type runner interface {
	Run(ctx context.Context, name string, args ...string) (runResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (runResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := runResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, err
	}
	return res, nil
}
