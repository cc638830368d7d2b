package prover

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/zkverify/internal/domain"
)

func newCircuitFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o700); err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Nargo.toml"), []byte("[package]\nname = \"insurance_verifier\"\n"), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "main.nr"), []byte("fn main() {}\n"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return dir
}

func TestNewWorkspace_CopiesCircuit(t *testing.T) {
	base := t.TempDir()
	ws, err := NewWorkspace(base, newCircuitFixture(t), "copy-test")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Remove()

	for _, rel := range []string{"Nargo.toml", filepath.Join("src", "main.nr")} {
		if _, err := os.Stat(filepath.Join(ws.Root, rel)); err != nil {
			t.Errorf("Expected %s in workspace: %v", rel, err)
		}
	}
	if !strings.Contains(ws.Root, "copy-test") {
		t.Errorf("Expected session ID in workspace path, got %s", ws.Root)
	}
}

func TestNewWorkspace_MissingCircuit(t *testing.T) {
	_, err := NewWorkspace(t.TempDir(), filepath.Join(t.TempDir(), "nope"), "missing")
	if err == nil {
		t.Fatal("Expected error for missing circuit directory")
	}
	if !IsToolchainMissing(err) {
		t.Errorf("Expected a toolchain-missing error, got %v", err)
	}
}

func TestWorkspace_WriteInputs(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), newCircuitFixture(t), "inputs")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Remove()

	in, err := domain.NewVerificationInput(20, 220)
	if err != nil {
		t.Fatalf("NewVerificationInput: %v", err)
	}
	if err := ws.WriteInputs(in); err != nil {
		t.Fatalf("WriteInputs: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ws.Root, "Prover.toml"))
	if err != nil {
		t.Fatalf("read Prover.toml: %v", err)
	}

	content := string(data)
	for _, want := range []string{
		`age = '20'`, `bmi = '220'`,
		`min_age = '10'`, `max_age = '25'`,
		`min_bmi = '185'`, `max_bmi = '249'`,
	} {
		// go-toml emits either quote style depending on version; accept both.
		alt := strings.ReplaceAll(want, "'", `"`)
		if !strings.Contains(content, want) && !strings.Contains(content, alt) {
			t.Errorf("Prover.toml missing %s, content:\n%s", want, content)
		}
	}
}

func TestWorkspace_Remove(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), newCircuitFixture(t), "remove")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	ws.Remove()

	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Errorf("Expected workspace to be removed, stat err: %v", err)
	}
}

func TestRemoveOrphanWorkspaces(t *testing.T) {
	workDir := t.TempDir()

	stale := filepath.Join(workDir, workspacePrefix+"stale")
	fresh := filepath.Join(workDir, workspacePrefix+"fresh")
	unrelated := filepath.Join(workDir, "keep-me")
	for _, dir := range []string{stale, fresh, unrelated} {
		if err := os.Mkdir(dir, 0o700); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	old := time.Now().Add(-2 * orphanAge)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed := removeOrphanWorkspaces(workDir)
	if removed != 1 {
		t.Errorf("Expected 1 removed workspace, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Expected stale workspace to be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("Expected fresh workspace to survive the sweep")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("Expected unrelated directory to survive the sweep")
	}
}
