// Package prover drives the external proving toolchain: it materializes
// circuit inputs into a session-scoped workspace, runs the witness and
// proof-synthesis stages as subprocesses, and translates their outcomes
// into client-facing proof results.
package prover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/ashureev/zkverify/internal/domain"
)

// StageRunner executes one pipeline stage as an external process and captures
// its exit status and output. Implementations must not interpret the output;
// that is the result parser's job.
type StageRunner interface {
	RunStage(ctx context.Context, name string, args []string, workDir string) (domain.StageOutcome, error)
}

// ExecRunner implements StageRunner with os/exec.
type ExecRunner struct{}

// RunStage runs name with args in workDir. A non-zero exit is not an error;
// it is reported through the outcome's ExitCode. An error is returned only
// when the process could not be run at all (binary missing, workDir gone,
// context expired before completion).
func (ExecRunner) RunStage(ctx context.Context, name string, args []string, workDir string) (domain.StageOutcome, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	outcome := domain.StageOutcome{
		Stage:  name,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome, fmt.Errorf("run %s: %w", name, ctxErr)
			}
			return outcome, fmt.Errorf("run %s: %w", name, err)
		}
		outcome.ExitCode = exitErr.ExitCode()
	}

	return outcome, nil
}
