package prover

import (
	"errors"
	"io/fs"
	"os/exec"

	"github.com/ashureev/zkverify/internal/domain"
)

// Fixed client-facing messages. Raw toolchain diagnostics never reach the
// client; they are kept in RawDetail for the logs.
const (
	MsgSuccess = "Proof generated successfully! The user is eligible for insurance discount."

	MsgWitnessFailed = "Circuit execution failed. The inputs do not satisfy the eligibility constraints."
	MsgProveFailed   = "Proof generation failed."
	MsgEnvironment   = "Proving toolchain is unavailable. Please try again later."
)

// Interpret derives a ProofResult from the captured stage outcomes, in
// pipeline order. The first failing stage determines the result; if every
// stage exited cleanly the result is a success carrying the fixed eligibility
// message.
func Interpret(outcomes ...domain.StageOutcome) domain.ProofResult {
	for _, o := range outcomes {
		if o.Succeeded() {
			continue
		}

		msg := MsgProveFailed
		if o.Stage == StageWitness {
			msg = MsgWitnessFailed
		}
		return domain.ProofResult{
			Success:   false,
			Message:   msg,
			RawDetail: o.Stderr,
		}
	}

	return domain.ProofResult{Success: true, Message: MsgSuccess}
}

// EnvironmentFailure builds the result for an operational defect: the stage
// could not run at all, or a required artifact is missing. Callers log these
// at elevated severity; an ordinary constraint failure goes through Interpret
// instead.
func EnvironmentFailure(err error) domain.ProofResult {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return domain.ProofResult{
		Success:   false,
		Message:   MsgEnvironment,
		RawDetail: detail,
	}
}

// IsToolchainMissing reports whether err indicates an absent binary or
// circuit artifact rather than a failed run — a deployment defect, not a
// protocol outcome.
func IsToolchainMissing(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
