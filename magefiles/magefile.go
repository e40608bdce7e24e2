//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Test

// Vet runs go vet on all packages.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test vets the module and runs all tests with the race detector.
func Test() error {
	mg.Deps(Vet)
	args := []string{"test", "-race", "./..."}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	return sh.RunV("go", args...)
}

// Bench runs the projection benchmarks.
func Bench() error {
	return sh.RunV("go", "test", "-run", "^$", "-bench", "Project", "-benchmem", "./...")
}

// Build installs the meshproj command into bin/.
func Build() error {
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	return sh.RunWith(map[string]string{"CGO_ENABLED": "0"}, "go", "build", "-o", "bin/", "./cmd/meshproj")
}

type Examples mg.Namespace

// Run runs every program under examples/.
func (Examples) Run() error {
	for _, dir := range []string{"unit-square", "param-transfer"} {
		fmt.Println("example", dir)
		if err := sh.RunV("go", "run", "./examples/"+dir); err != nil {
			return err
		}
	}
	return nil
}

// Clean removes build output.
func Clean() error {
	return sh.Rm("bin")
}
