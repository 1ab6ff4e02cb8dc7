package conformance

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TestDataDir is where scenario YAML files live, relative to this
// package.
const TestDataDir = "testdata"

// LoadScenarioFile parses a single YAML scenario file.
func LoadScenarioFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadScenarioDir walks dir for *.yaml files and parses each as a
// Scenario, skipping (with a stderr warning) any file that fails to
// parse rather than aborting the whole load.
func LoadScenarioDir(dir string) ([]Scenario, error) {
	var scenarios []Scenario
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		s, err := LoadScenarioFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "conformance: skipping %s: %v\n", path, err)
			return nil
		}
		scenarios = append(scenarios, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scenarios, nil
}
