package prover

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ashureev/zkverify/internal/config"
	"github.com/ashureev/zkverify/internal/domain"
)

// Stage labels used in outcomes and logs.
const (
	StageWitness = "witness"
	StageProve   = "prove"
)

// Pipeline orchestrates the two-stage proving toolchain for one request at a
// time. It is safe for concurrent use; every request gets its own workspace.
type Pipeline struct {
	runner      StageRunner
	circuitPath string
	workDir     string
	nargoBin    string
	proverBin   string
	timeout     time.Duration
}

// NewPipeline builds a Pipeline from configuration. Pass ExecRunner{} in
// production; tests substitute a fake StageRunner.
func NewPipeline(cfg *config.Config, runner StageRunner) *Pipeline {
	return &Pipeline{
		runner:      runner,
		circuitPath: cfg.CircuitPath,
		workDir:     cfg.WorkDir,
		nargoBin:    cfg.NargoBin,
		proverBin:   cfg.ProverBin,
		timeout:     cfg.ProveTimeout,
	}
}

// CheckToolchain verifies that the circuit directory is present. Used by the
// health endpoint and at startup.
func (p *Pipeline) CheckToolchain() error {
	if _, err := os.Stat(p.circuitPath); err != nil {
		return fmt.Errorf("circuit path: %w", err)
	}
	return nil
}

// Prove runs witness computation and proof synthesis for the request.
// Failures of any kind are folded into the ProofResult; Prove never panics
// and never returns an error, so a broken toolchain degrades to a
// client-visible failure instead of killing the session.
func (p *Pipeline) Prove(ctx context.Context, req domain.ProofRequest) domain.ProofResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	log := slog.With("session_id", req.SessionID)

	ws, err := NewWorkspace(p.workDir, p.circuitPath, req.SessionID)
	if err != nil {
		log.Error("Failed to allocate proving workspace", "error", err)
		return EnvironmentFailure(err)
	}
	defer ws.Remove()

	if err := ws.WriteInputs(req.Input); err != nil {
		log.Error("Failed to write prover inputs", "error", err)
		return EnvironmentFailure(err)
	}

	witness, err := p.runner.RunStage(ctx, p.nargoBin, []string{"execute"}, ws.Root)
	witness.Stage = StageWitness
	if err != nil {
		return p.stageError(log, StageWitness, err)
	}
	if !witness.Succeeded() {
		log.Info("Witness stage rejected inputs", "stage", StageWitness, "exit_code", witness.ExitCode, "stderr", witness.Stderr)
		return Interpret(witness)
	}

	proveArgs := []string{
		"prove",
		"-b", ws.CircuitArtifactPath(),
		"-w", ws.WitnessPath(),
		"-o", "target",
	}
	proved, err := p.runner.RunStage(ctx, p.proverBin, proveArgs, ws.Root)
	proved.Stage = StageProve
	if err != nil {
		return p.stageError(log, StageProve, err)
	}
	if !proved.Succeeded() {
		log.Warn("Proof synthesis failed", "stage", StageProve, "exit_code", proved.ExitCode, "stderr", proved.Stderr)
		return Interpret(witness, proved)
	}

	proofBytes, err := os.ReadFile(ws.ProofPath())
	if err != nil {
		log.Error("Proof artifact missing after successful synthesis", "error", err)
		return EnvironmentFailure(err)
	}

	result := Interpret(witness, proved)
	result.Proof = base64.StdEncoding.EncodeToString(proofBytes)
	log.Info("Proof generated", "proof_bytes", len(proofBytes))
	return result
}

func (p *Pipeline) stageError(log *slog.Logger, stage string, err error) domain.ProofResult {
	if IsToolchainMissing(err) {
		log.Error("Proving toolchain missing", "stage", stage, "error", err)
	} else {
		log.Error("Stage invocation failed", "stage", stage, "error", err)
	}
	return EnvironmentFailure(err)
}
