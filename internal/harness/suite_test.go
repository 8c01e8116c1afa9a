package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios_YamlAndYml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "a.yaml"), paths[0])
	assert.Equal(t, filepath.Join(dir, "b.yml"), paths[1])
}

func TestFindScenarios_SkipsGoldenDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "stray.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.yaml"), []byte("x"), 0o644))

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "real.yaml"), paths[0])
}

func TestFindScenarios_MissingDir(t *testing.T) {
	_, err := FindScenarios(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestRunSuite_AllPass(t *testing.T) {
	suite := RunSuite(context.Background(), []string{
		filepath.Join("testdata", "scenarios", "single-pion-idle.yaml"),
		filepath.Join("testdata", "scenarios", "elastic-pair.yaml"),
	})

	assert.Equal(t, 2, suite.Total)
	assert.Equal(t, 2, suite.Passed)
	assert.Equal(t, 0, suite.Failed)
	assert.Empty(t, suite.Failures)
}

func TestRunSuite_BrokenFileDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: [unclosed"), 0o644))

	suite := RunSuite(context.Background(), []string{
		broken,
		filepath.Join("testdata", "scenarios", "single-pion-idle.yaml"),
	})

	assert.Equal(t, 2, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	require.Len(t, suite.Failures, 1)
	assert.Equal(t, broken, suite.Failures[0].Path)
	assert.Equal(t, "broken.yaml", suite.Failures[0].Scenario)
}

func TestRunSuite_FailedExpectationListed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "impossible.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: impossible
description: "A lone pion cannot end as ninety-nine."
config:
  seed: 7
  modus:
    particles:
      - pdg: 211
        count: 1
expect:
  - type: final_count
    count: 99
`), 0o644))

	suite := RunSuite(context.Background(), []string{path})

	assert.Equal(t, 1, suite.Failed)
	require.Len(t, suite.Failures, 1)
	assert.Equal(t, "impossible", suite.Failures[0].Scenario)
	require.NotEmpty(t, suite.Failures[0].Errors)
	assert.Contains(t, suite.Failures[0].Errors[0], "exactly 99")
}
