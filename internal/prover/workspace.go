package prover

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/ashureev/zkverify/internal/domain"
)

const (
	// Name of the circuit package, fixed by the circuit's Nargo.toml.
	circuitPackage = "insurance_verifier"

	// Prefix of per-session workspace directories. The sweep worker removes
	// orphaned directories matching this prefix.
	workspacePrefix = "zkverify-"
)

// Workspace is a session-scoped directory holding a private copy of the
// circuit and the serialized inputs. Two concurrent sessions never share a
// workspace, so the toolchain's file artifacts cannot collide.
type Workspace struct {
	Root      string
	sessionID string
}

// NewWorkspace creates the workspace directory and copies the circuit
// manifest and source into it from circuitPath.
func NewWorkspace(baseDir, circuitPath, sessionID string) (*Workspace, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	root := filepath.Join(baseDir, workspacePrefix+sessionID)
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &Workspace{Root: root, sessionID: sessionID}

	if err := copyFile(filepath.Join(circuitPath, "Nargo.toml"), filepath.Join(root, "Nargo.toml")); err != nil {
		ws.Remove()
		return nil, fmt.Errorf("copy circuit manifest: %w", err)
	}
	if err := copyFile(filepath.Join(circuitPath, "src", "main.nr"), filepath.Join(root, "src", "main.nr")); err != nil {
		ws.Remove()
		return nil, fmt.Errorf("copy circuit source: %w", err)
	}

	return ws, nil
}

// proverInputs is the toolchain's input document. Noir expects field elements
// quoted as strings.
type proverInputs struct {
	Age    string `toml:"age"`
	BMI    string `toml:"bmi"`
	MinAge string `toml:"min_age"`
	MaxAge string `toml:"max_age"`
	MinBMI string `toml:"min_bmi"`
	MaxBMI string `toml:"max_bmi"`
}

// WriteInputs serializes the verification input and the public range bounds
// into the workspace's Prover.toml.
func (w *Workspace) WriteInputs(in domain.VerificationInput) error {
	doc, err := toml.Marshal(proverInputs{
		Age:    strconv.Itoa(in.Age),
		BMI:    strconv.Itoa(in.BMITimesTen),
		MinAge: strconv.Itoa(domain.MinAge),
		MaxAge: strconv.Itoa(domain.MaxAge),
		MinBMI: strconv.Itoa(domain.MinBMI),
		MaxBMI: strconv.Itoa(domain.MaxBMI),
	})
	if err != nil {
		return fmt.Errorf("marshal prover inputs: %w", err)
	}

	if err := os.WriteFile(filepath.Join(w.Root, "Prover.toml"), doc, 0o600); err != nil {
		return fmt.Errorf("write prover inputs: %w", err)
	}
	return nil
}

// WitnessPath returns the path the witness stage writes its artifact to,
// relative to the workspace root.
func (w *Workspace) WitnessPath() string {
	return filepath.Join("target", circuitPackage+".gz")
}

// CircuitArtifactPath returns the compiled circuit path the proving stage
// consumes, relative to the workspace root.
func (w *Workspace) CircuitArtifactPath() string {
	return filepath.Join("target", circuitPackage+".json")
}

// ProofPath returns the absolute path of the proof artifact.
func (w *Workspace) ProofPath() string {
	return filepath.Join(w.Root, "target", "proof")
}

// Remove deletes the workspace and everything in it. Failures are tolerated;
// the sweep worker picks up leftovers.
func (w *Workspace) Remove() {
	_ = os.RemoveAll(w.Root)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
