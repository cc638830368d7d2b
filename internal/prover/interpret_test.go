package prover

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/ashureev/zkverify/internal/domain"
)

func TestInterpret_AllClean(t *testing.T) {
	result := Interpret(
		domain.StageOutcome{Stage: StageWitness},
		domain.StageOutcome{Stage: StageProve},
	)
	if !result.Success {
		t.Fatal("Expected success when every stage exits zero")
	}
	if result.Message != MsgSuccess {
		t.Errorf("Expected eligibility message, got %q", result.Message)
	}
}

func TestInterpret_FirstFailureWins(t *testing.T) {
	result := Interpret(
		domain.StageOutcome{Stage: StageWitness, ExitCode: 1, Stderr: "constraint"},
		domain.StageOutcome{Stage: StageProve, ExitCode: 1, Stderr: "later"},
	)
	if result.Success {
		t.Fatal("Expected failure")
	}
	if result.Message != MsgWitnessFailed {
		t.Errorf("Expected witness message, got %q", result.Message)
	}
	if result.RawDetail != "constraint" {
		t.Errorf("Expected first stage's stderr, got %q", result.RawDetail)
	}
}

func TestInterpret_ProveFailure(t *testing.T) {
	result := Interpret(
		domain.StageOutcome{Stage: StageWitness},
		domain.StageOutcome{Stage: StageProve, ExitCode: 2, Stderr: "backend"},
	)
	if result.Success || result.Message != MsgProveFailed {
		t.Errorf("Expected prove failure, got %+v", result)
	}
}

func TestIsToolchainMissing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("run nargo: %w", exec.ErrNotFound), true},
		{fmt.Errorf("copy circuit: %w", os.ErrNotExist), true},
		{fmt.Errorf("run nargo: %w", context.DeadlineExceeded), false},
		{io.ErrUnexpectedEOF, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsToolchainMissing(tt.err); got != tt.want {
			t.Errorf("IsToolchainMissing(%v) = %t, want %t", tt.err, got, tt.want)
		}
	}
}

// blockingRunner never completes until its context expires.
type blockingRunner struct{}

func (blockingRunner) RunStage(ctx context.Context, name string, args []string, workDir string) (domain.StageOutcome, error) {
	<-ctx.Done()
	return domain.StageOutcome{Stage: name}, fmt.Errorf("run %s: %w", name, ctx.Err())
}

func TestPipeline_TimeoutKillsStage(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ProveTimeout = 50 * time.Millisecond
	p := NewPipeline(cfg, blockingRunner{})

	start := time.Now()
	result := p.Prove(context.Background(), domain.ProofRequest{
		SessionID: "timeout",
		Input:     mustInput(t, 20, 220),
	})
	elapsed := time.Since(start)

	if result.Success {
		t.Fatal("Expected failure on timeout")
	}
	if result.Message != MsgEnvironment {
		t.Errorf("Expected environment message, got %q", result.Message)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Timeout took too long: %s", elapsed)
	}
}

func TestExecRunner_CapturesExitAndOutput(t *testing.T) {
	runner := ExecRunner{}
	dir := t.TempDir()

	outcome, err := runner.RunStage(context.Background(), "sh", []string{"-c", "echo out; echo err >&2; exit 3"}, dir)
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if outcome.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", outcome.ExitCode)
	}
	if outcome.Stdout != "out\n" {
		t.Errorf("Expected stdout capture, got %q", outcome.Stdout)
	}
	if outcome.Stderr != "err\n" {
		t.Errorf("Expected stderr capture, got %q", outcome.Stderr)
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	runner := ExecRunner{}

	_, err := runner.RunStage(context.Background(), "definitely-not-a-binary-zkv", nil, t.TempDir())
	if err == nil {
		t.Fatal("Expected error for missing binary")
	}
	if !IsToolchainMissing(err) {
		t.Errorf("Expected toolchain-missing classification, got %v", err)
	}
}
