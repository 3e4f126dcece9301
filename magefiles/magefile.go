//go:build mage

// Package main contains Mage build targets for specgraph developer tooling.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "specgraph"
	cmdPkg  = "./cmd/specgraph"
)

var binPath = filepath.Join(binDir, binName)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version, "-o", binPath, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", binPath, version)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Extract builds the CLI and runs an extraction over the cached document,
// saving the run to the concept store.
func Extract() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "extract", "--store")
}

// Fetch builds the CLI and refreshes the cached document.
func Fetch() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "fetch")
}

// Serve builds the CLI and serves the current outputs.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "serve")
}

// Clean removes the binary and the generated outputs.
func Clean() error {
	for _, p := range []string{binDir, "graph.json", "concepts.json", "unused.html"} {
		if err := sh.Rm(p); err != nil {
			return err
		}
	}
	return nil
}

// Stats prints project metrics: Go production/test LOC and, when
// graph.json exists, the size of the extracted graph.
func Stats() error {
	prodLines, testLines, err := countGoLines(".")
	if err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)

	data, err := os.ReadFile("graph.json")
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var graph map[string][]string
	if err := json.Unmarshal(data, &graph); err != nil {
		return fmt.Errorf("decoding graph.json: %w", err)
	}
	edges := 0
	for _, deps := range graph {
		edges += len(deps)
	}
	fmt.Printf("Concepts in graph.json:          %d\n", len(graph))
	fmt.Printf("Dependency edges:                %d\n", edges)
	return nil
}

// countGoLines walks the tree and counts non-blank lines in Go files,
// split into production and test code.
func countGoLines(root string) (prod, test int, err error) {
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if name := info.Name(); name != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) != "" {
				n++
			}
		}
		if strings.HasSuffix(path, "_test.go") {
			test += n
		} else {
			prod += n
		}
		return sc.Err()
	})
	return prod, test, err
}
