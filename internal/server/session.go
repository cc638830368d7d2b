package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/ashureev/zkverify/internal/domain"
	"github.com/ashureev/zkverify/internal/metrics"
	"github.com/ashureev/zkverify/internal/prover"
	"github.com/ashureev/zkverify/internal/store"
	"github.com/ashureev/zkverify/internal/validate"
)

// Wire protocol text. The banner and prompts are part of the protocol
// contract; clients script against them.
const (
	banner        = "ZK Insurance Verifier Server\n============================\n"
	agePrompt     = "Enter age (10-25): "
	bmiPrompt     = "Enter BMI multiplied by 10 (185-249): "
	generatingMsg = "Generating proof...\n"
	goodbyeMsg    = "\nConnection will close. Thanks for using ZK Insurance Verifier!\n"
	busyMsg       = "Server busy: too many concurrent verifications. Please try again later.\n"

	proofPreviewLen = 50
)

// Prover generates a proof for one validated request. Satisfied by
// *prover.Pipeline; tests substitute a fake.
type Prover interface {
	Prove(ctx context.Context, req domain.ProofRequest) domain.ProofResult
}

// errClientClosed marks a deliberate end of input (blank line or EOF before
// both values arrived).
var errClientClosed = errors.New("client closed input")

// session owns one client connection end-to-end: prompt, validate, prove,
// respond, close.
type session struct {
	id     string
	conn   net.Conn
	reader *bufio.Reader
	prover Prover
	repo   store.Repository
	log    *slog.Logger
}

// run walks the connection through the protocol once. All failures terminate
// the session locally; nothing here can take the service down.
func (s *session) run(ctx context.Context) {
	if err := s.writeString(banner + agePrompt); err != nil {
		return
	}

	age, err := s.readValidated(validate.FieldAge, agePrompt)
	if err != nil {
		s.log.Debug("Session ended before age input", "error", err)
		return
	}

	if err := s.writeString(bmiPrompt); err != nil {
		return
	}

	bmi, err := s.readValidated(validate.FieldBMI, bmiPrompt)
	if err != nil {
		s.log.Debug("Session ended before BMI input", "error", err)
		return
	}

	input, err := domain.NewVerificationInput(age, bmi)
	if err != nil {
		// Unreachable after validation; refuse to prove rather than guess.
		s.log.Error("Validated input rejected by domain constraints", "error", err)
		return
	}

	if err := s.writeString(generatingMsg); err != nil {
		return
	}

	// A disconnect during proving cancels the pipeline so subprocesses are
	// killed instead of completing wastefully.
	proveCtx, cancel := context.WithCancel(ctx)
	go s.watchDisconnect(proveCtx, cancel)

	start := time.Now()
	result := s.prover.Prove(proveCtx, domain.ProofRequest{SessionID: s.id, Input: input})
	cancel()
	elapsed := time.Since(start)

	metrics.ProveDuration.Observe(elapsed.Seconds())
	metrics.ProofsTotal.WithLabelValues(outcomeLabel(result)).Inc()

	s.record(result, elapsed)
	s.respond(result)
}

// readValidated reads lines until one passes validation for the field,
// re-prompting after each rejection. A blank line or EOF ends the session.
func (s *session) readValidated(field validate.Field, prompt string) (int, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// A final unterminated line still counts as input.
			if !errors.Is(err, io.EOF) || strings.TrimSpace(line) == "" {
				return 0, err
			}
		}
		if strings.TrimSpace(line) == "" {
			return 0, errClientClosed
		}

		n, verr := validate.Parse(line, field)
		if verr != nil {
			var ve *validate.Error
			msg := "Invalid input."
			if errors.As(verr, &ve) {
				msg = ve.UserMessage()
			}
			if werr := s.writeString(msg + "\n" + prompt); werr != nil {
				return 0, werr
			}
			continue
		}
		return n, nil
	}
}

// watchDisconnect blocks on the socket while the pipeline runs. A read error
// that is not a half-close EOF means the client is gone, so the proving
// context is canceled. Scripted clients that shut down their write side after
// sending both values still get their response.
func (s *session) watchDisconnect(ctx context.Context, cancel context.CancelFunc) {
	buf := make([]byte, 1)
	for {
		if _, err := s.conn.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) {
				cancel()
			}
			return
		}
		// Stray bytes during proving are ignored.
		if ctx.Err() != nil {
			return
		}
	}
}

// respond writes the proof response block, the success-only supplemental
// output, and the goodbye line.
func (s *session) respond(result domain.ProofResult) {
	response := fmt.Sprintf("\n=== PROOF RESPONSE ===\nSuccess: %t\nMessage: %s\n", result.Success, result.Message)
	if err := s.writeString(response); err != nil {
		return
	}

	if result.Success && result.Proof != "" {
		preview := result.Proof
		if len(preview) > proofPreviewLen {
			preview = preview[:proofPreviewLen]
		}
		extra := fmt.Sprintf("\nProof (Base64): %s...\n\nAge Range: %d - %d\nBMI Range: %.1f - %.1f\n",
			preview,
			domain.MinAge, domain.MaxAge,
			float64(domain.MinBMI)/10, float64(domain.MaxBMI)/10)
		if err := s.writeString(extra); err != nil {
			return
		}
	}

	_ = s.writeString(goodbyeMsg)
}

// record appends the attempt to the audit trail. Persistence failures are
// logged, never surfaced to the client.
func (s *session) record(result domain.ProofResult, elapsed time.Duration) {
	if s.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &domain.ProofRecord{
		SessionID:  s.id,
		RemoteAddr: s.conn.RemoteAddr().String(),
		Success:    result.Success,
		Message:    result.Message,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if err := s.repo.SaveRecord(ctx, rec); err != nil {
		s.log.Error("Failed to save proof record", "error", err)
	}
}

func (s *session) writeString(text string) error {
	if _, err := io.WriteString(s.conn, text); err != nil {
		s.log.Debug("Write failed, closing session", "error", err)
		return err
	}
	return nil
}

// outcomeLabel maps a result to its metrics label: success, failure for an
// ordinary constraint rejection, error for an operational defect.
func outcomeLabel(result domain.ProofResult) string {
	switch {
	case result.Success:
		return "success"
	case result.Message == prover.MsgEnvironment:
		return "error"
	default:
		return "failure"
	}
}
