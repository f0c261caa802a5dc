//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/integralist/go-findroot/find"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	packageName = "github.com/wrouesnel/infisical-launcher"
	binaryName  = "infisical-launcher"
)

// Default target to run when none is specified
var Default = All

func repoRoot() (string, error) {
	root, err := find.Repo()
	if err != nil {
		return "", err
	}
	return root.Path, nil
}

func buildVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		return "development"
	}
	return v
}

// Build compiles the launcher into bin/.
func Build() error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	ldflags := fmt.Sprintf("-s -w -X %s/version.Version=%s", packageName, buildVersion())
	output := filepath.Join(root, "bin", binaryName)
	return sh.RunWith(map[string]string{"CGO_ENABLED": "0"},
		"go", "build", "-trimpath", "-ldflags", ldflags, "-o", output, "./cmd/"+binaryName)
}

// Test runs the unit and script tests.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// All lints, tests and builds.
func All() {
	mg.SerialDeps(Lint, Test, Build)
}
