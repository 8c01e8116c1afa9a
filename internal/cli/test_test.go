package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idleScenarioYAML = `name: pion-idle
description: "A lone pion in a box never interacts."
config:
  seed: 7
  end_time: 5
  modus:
    particles:
      - pdg: 211
        count: 1
expect:
  - type: final_count
    count: 1
  - type: interactions
    count: 0
`

const impossibleScenarioYAML = `name: impossible
description: "A lone pion cannot become ninety-nine."
config:
  seed: 7
  end_time: 5
  modus:
    particles:
      - pdg: 211
        count: 1
expect:
  - type: final_count
    count: 99
`

func writeScenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range scenarios {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func runTestCommand(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	out := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return out, cmd.Execute()
}

func TestTestCommandUpdateThenPass(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"pion-idle.yaml": idleScenarioYAML})

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ pion-idle")
	assert.Contains(t, out.String(), "1 golden file(s) updated")

	golden := filepath.Join(dir, "golden", "pion-idle.golden")
	_, statErr := os.Stat(golden)
	require.NoError(t, statErr, "update should create the golden file")

	// Second pass compares against the snapshot just written
	out, err = runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ 1 scenario(s) passed")
}

func TestTestCommandMissingGolden(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"pion-idle.yaml": idleScenarioYAML})

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), "golden pion-idle.golden missing")
}

func TestTestCommandFailedExpectation(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"impossible.yaml": impossibleScenarioYAML})

	out, err := runTestCommand(t, "text", dir, "--update")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), "✗ impossible")
	assert.Contains(t, out.String(), "exactly 99")
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"pion-idle.yaml":  idleScenarioYAML,
		"impossible.yaml": impossibleScenarioYAML,
	})

	// The filter keeps the failing scenario out of the suite
	out, err := runTestCommand(t, "text", dir, "--filter", "pion-*", "--update")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ pion-idle")
	assert.NotContains(t, out.String(), "impossible")
}

func TestTestCommandExplicitFiles(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"pion-idle.yaml":  idleScenarioYAML,
		"impossible.yaml": impossibleScenarioYAML,
	})

	out, err := runTestCommand(t, "text", filepath.Join(dir, "pion-idle.yaml"), "--update")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ pion-idle")
	assert.NotContains(t, out.String(), "impossible")

	// The golden lands next to the scenario file
	_, statErr := os.Stat(filepath.Join(dir, "golden", "pion-idle.golden"))
	require.NoError(t, statErr)
}

func TestTestCommandMixedDirAndFileRejected(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"pion-idle.yaml": idleScenarioYAML})

	_, err := runTestCommand(t, "text", filepath.Join(dir, "pion-idle.yaml"), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandFilterMatchesNothing(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"pion-idle.yaml": idleScenarioYAML})

	_, err := runTestCommand(t, "text", dir, "--filter", "nope-*")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandInvalidFilter(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"pion-idle.yaml": idleScenarioYAML})

	_, err := runTestCommand(t, "text", dir, "--filter", "[unclosed")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandMissingDir(t *testing.T) {
	_, err := runTestCommand(t, "text", filepath.Join(t.TempDir(), "nowhere"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandBrokenScenarioListed(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"broken.yaml": "name: [unclosed"})

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), "✗ broken")
}

func TestTestCommandJSON(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"pion-idle.yaml": idleScenarioYAML})

	out, err := runTestCommand(t, "json", dir, "--update")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["passed"])
}

func TestTestCommandJSONFailure(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"impossible.yaml": impossibleScenarioYAML})

	out, err := runTestCommand(t, "json", dir, "--update")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SCENARIOS_FAILED", resp.Error.Code)
}
