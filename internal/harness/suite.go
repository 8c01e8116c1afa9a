package harness

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// SuiteResult aggregates scenario outcomes across a set of files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure pins one failed scenario to its file and errors.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios returns the scenario files under dir in lexical order,
// recognizing .yaml and .yml. Directories named golden are skipped so a
// suite can keep its golden snapshots next to its scenarios.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios in %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and executes every scenario file in order. A file that
// fails to load or run counts as a failure, not an abort, so one broken
// scenario cannot hide the rest.
func RunSuite(ctx context.Context, paths []string) *SuiteResult {
	suite := &SuiteResult{}
	for _, path := range paths {
		suite.Total++

		sc, err := LoadScenario(path)
		if err != nil {
			suite.fail(filepath.Base(path), path, err.Error())
			continue
		}

		res, err := Run(ctx, sc)
		if err != nil {
			suite.fail(sc.Name, path, err.Error())
			continue
		}
		if !res.Pass {
			suite.Failed++
			suite.Failures = append(suite.Failures, ScenarioFailure{
				Scenario: sc.Name,
				Path:     path,
				Errors:   res.Errors,
			})
			continue
		}
		suite.Passed++
	}
	return suite
}

func (s *SuiteResult) fail(scenario, path, msg string) {
	s.Failed++
	s.Failures = append(s.Failures, ScenarioFailure{
		Scenario: scenario,
		Path:     path,
		Errors:   []string{msg},
	})
}
