package domain

import "time"

// StageOutcome captures one external-process invocation of the proving
// pipeline. Immutable once captured.
type StageOutcome struct {
	Stage    string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports whether the stage exited cleanly.
func (o StageOutcome) Succeeded() bool {
	return o.ExitCode == 0
}

// ProofResult is the only entity serialized to the client. RawDetail carries
// toolchain diagnostics for the logs and is never written to the socket.
type ProofResult struct {
	Success   bool
	Message   string
	Proof     string // base64, empty unless Success
	RawDetail string
}

// ProofRecord is one row of the proof audit trail. The raw age and BMI values
// are deliberately absent: the service never persists what the client is
// proving knowledge of.
type ProofRecord struct {
	SessionID  string
	RemoteAddr string
	Success    bool
	Message    string
	DurationMs int64
	CreatedAt  time.Time
}
