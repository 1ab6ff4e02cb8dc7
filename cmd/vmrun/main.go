// Command vmrun loads a bytecode scenario file (or a directory of
// them), runs each one through its action sequence, and prints PASS or
// FAIL per scenario against the scenario's expectations.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"brainvm/conformance"
	"brainvm/trace"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Path to a scenario YAML file to run")
	suiteDir := flag.String("suite", "", "Directory of scenario YAML files to run as a suite")

	traceEnabled := flag.Bool("trace", false, "Enable execution tracing")
	traceFilter := flag.String("trace-filter", "", "Trace filter pattern (glob, comma-separated)")

	flag.Parse()

	if *traceEnabled {
		var filters []string
		if *traceFilter != "" {
			filters = strings.Split(*traceFilter, ",")
			for i := range filters {
				filters[i] = strings.TrimSpace(filters[i])
			}
		}
		trace.Init(true, filters, os.Stderr)
	} else {
		trace.Init(false, nil, nil)
	}

	if *scenarioPath == "" && *suiteDir == "" {
		log.Fatalf("usage: vmrun -scenario <file.yaml> | -suite <dir>")
	}

	runner := conformance.NewRunner()

	if *scenarioPath != "" {
		s, err := conformance.LoadScenarioFile(*scenarioPath)
		if err != nil {
			log.Fatalf("loading %s: %v", *scenarioPath, err)
		}
		runOne(runner, s)
		return
	}

	scenarios, err := conformance.LoadScenarioDir(*suiteDir)
	if err != nil {
		log.Fatalf("loading suite %s: %v", *suiteDir, err)
	}
	passed := 0
	for _, s := range scenarios {
		if runOne(runner, s) {
			passed++
		}
	}
	fmt.Printf("\n%d/%d scenarios passed\n", passed, len(scenarios))
	if passed != len(scenarios) {
		os.Exit(1)
	}
}

func runOne(runner *conformance.Runner, s conformance.Scenario) bool {
	result := runner.Run(s)
	if result.Error != nil {
		fmt.Printf("FAIL %-30s %v\n", s.Name, result.Error)
		return false
	}
	if !result.Passed {
		fmt.Printf("FAIL %-30s (no error, but did not pass)\n", s.Name)
		return false
	}
	fmt.Printf("PASS %-30s\n", s.Name)
	return true
}
