package binary_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const guestProgram = `{
  "pc_start": 0,
  "instructions": [
    {"op": "add", "operands": [8, 4, 1, 0, 0]},
    {"op": "add", "operands": [16, 16, 10, 0, 0]},
    {"op": "add", "operands": [12, 4, 8, 0, 1]},
    {"op": "add", "operands": [4, 8, 0, 0, 0]},
    {"op": "add", "operands": [8, 12, 0, 0, 0]},
    {"op": "sub", "operands": [16, 16, 1, 0, 0]},
    {"op": "bne", "operands": [16, 28, -16]},
    {"op": "publish", "operands": [0, 4]},
    {"op": "terminate", "operands": [0]}
  ]
}`

// buildCLI compiles cmd/vybium-zkvm into a temp dir once per test run.
func buildCLI(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping binary test in short mode")
	}
	bin := filepath.Join(t.TempDir(), "vybium-zkvm")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/vybium-zkvm")
	cmd.Dir = "../.."
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return bin
}

func writeGuest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fib.json")
	require.NoError(t, os.WriteFile(path, []byte(guestProgram), 0o644))
	return path
}

func TestCLIRun(t *testing.T) {
	bin := buildCLI(t)
	prog := writeGuest(t)

	out, err := exec.Command(bin, "run", prog).CombinedOutput()
	require.NoError(t, err, string(out))
	require.Contains(t, string(out), "exit code: 0")
	require.Contains(t, string(out), "public[0] = 55")
}

func TestCLIProveVerifyInspect(t *testing.T) {
	bin := buildCLI(t)
	prog := writeGuest(t)
	proof := filepath.Join(t.TempDir(), "proof.bin")

	out, err := exec.Command(bin, "prove", "-o", proof, prog).CombinedOutput()
	require.NoError(t, err, string(out))

	out, err = exec.Command(bin, "verify", prog, proof).CombinedOutput()
	require.NoError(t, err, string(out))
	require.Contains(t, string(out), "proof valid")

	out, err = exec.Command(bin, "inspect", proof).CombinedOutput()
	require.NoError(t, err, string(out))
	require.Contains(t, string(out), "segments: 1")

	// A verifier keyed to a different program must reject the proof.
	otherPath := filepath.Join(t.TempDir(), "other.json")
	other := strings.Replace(guestProgram, `[16, 16, 10, 0, 0]`, `[16, 16, 11, 0, 0]`, 1)
	require.NoError(t, os.WriteFile(otherPath, []byte(other), 0o644))
	out, err = exec.Command(bin, "verify", otherPath, proof).CombinedOutput()
	require.Error(t, err, string(out))
}

func TestCLICommitDeterministic(t *testing.T) {
	bin := buildCLI(t)
	prog := writeGuest(t)

	first, err := exec.Command(bin, "commit", prog).Output()
	require.NoError(t, err)
	second, err := exec.Command(bin, "commit", prog).Output()
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.NotEmpty(t, strings.TrimSpace(string(first)))
}
