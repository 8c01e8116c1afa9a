package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/output"
	"github.com/roach88/cascade/internal/trace"
)

const runConfigYAML = `
events: 1
seed: 7
end_time: 5
modus:
  name: box
  length: 8
  temperature: 0.15
  particles:
    - pdg: 211
      count: 2
`

func TestRunWithConfigFile(t *testing.T) {
	path := writeConfig(t, runConfigYAML)

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Run complete: 1 event(s)")
	assert.Contains(t, out.String(), "seed 7")
	// Structured logs stay off stdout
	assert.NotContains(t, out.String(), "level=INFO")
}

func TestRunRecordsTrace(t *testing.T) {
	path := writeConfig(t, runConfigYAML)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path, "--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Trace recorded: run ")

	ts, err := trace.Open(dbPath)
	require.NoError(t, err)
	defer ts.Close()

	rec, err := ts.LatestRun(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Digest, "run should be finished")
	assert.Equal(t, int64(7), rec.Seed)
	assert.Equal(t, 1, rec.Events)
	assert.Equal(t, engine.Version, rec.EngineVersion)
	assert.NotEmpty(t, rec.Config)
}

func TestRunWritesBinary(t *testing.T) {
	path := writeConfig(t, runConfigYAML)
	binPath := filepath.Join(t.TempDir(), "parts.bin")

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path, "--bin", binPath})

	require.NoError(t, cmd.Execute())

	f, err := os.Open(binPath)
	require.NoError(t, err)
	defer f.Close()

	header, blocks, err := output.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, engine.Version, header.EngineVersion)
	require.NotEmpty(t, blocks)
	// Final block of the only event holds both pions
	last := blocks[len(blocks)-1]
	assert.Equal(t, int32(0), last.Event)
	assert.Len(t, last.Particles, 2)
}

func TestRunJSON(t *testing.T) {
	path := writeConfig(t, runConfigYAML)

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	// stdout is one JSON document; the measurement table went to stderr
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), data["seed"])
	assert.Equal(t, float64(1), data["events"])
}

func TestRunDefaultsWithoutConfig(t *testing.T) {
	out := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Run complete: 1 event(s)")
}

func TestRunMissingConfig(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunInvalidConfig(t *testing.T) {
	path := writeConfig(t, "events: 0\nseed: 7\n")

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCanceledContext(t *testing.T) {
	path := writeConfig(t, runConfigYAML)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "run interrupted")
}
