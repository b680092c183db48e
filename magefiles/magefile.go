//go:build mage

// Package main contains Mage build targets for pdfraster.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
)

const (
	binDir    = "bin"
	binName   = "pdfraster"
	wasmOut   = "web/app.wasm"
	wasmPkg   = "./cmd/webapp"
	buildPkg  = "github.com/mwhitby/pdfraster/internal/build"
	webappPkg = "github.com/mwhitby/pdfraster/webapp"
)

// version returns the build version, VERSION env or git describe or "dev".
func version() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	out, err := exec.Command("git", "describe", "--tags", "--always", "--dirty").Output()
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(out))
}

// ldflags builds the -ldflags value stamping version info into both binaries.
func ldflags() string {
	v := version()
	date := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("-X %s.Version=%s -X %s.Version=%s -X %s.BuildDate=%s",
		buildPkg, v, webappPkg, v, webappPkg, date)
}

// BuildWasm compiles the go-app frontend to web/app.wasm and copies wasm_exec.js.
func BuildWasm() error {
	if err := os.MkdirAll("web", 0o755); err != nil {
		return fmt.Errorf("creating web: %w", err)
	}

	cmd := exec.Command("go", "build", "-ldflags", ldflags(), "-o", wasmOut, wasmPkg)
	cmd.Env = append(os.Environ(), "GOOS=js", "GOARCH=wasm")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build wasm: %w", err)
	}

	if err := copyWasmExec(); err != nil {
		return err
	}

	fmt.Printf("Built %s\n", wasmOut)
	return nil
}

// copyWasmExec copies wasm_exec.js from the Go installation into web/.
func copyWasmExec() error {
	out, err := exec.Command("go", "env", "GOROOT").Output()
	if err != nil {
		return fmt.Errorf("go env GOROOT: %w", err)
	}
	goroot := strings.TrimSpace(string(out))

	// The file moved from misc/wasm to lib/wasm in Go 1.24
	candidates := []string{
		filepath.Join(goroot, "lib", "wasm", "wasm_exec.js"),
		filepath.Join(goroot, "misc", "wasm", "wasm_exec.js"),
	}
	for _, src := range candidates {
		data, err := os.ReadFile(src)
		if err != nil {
			continue
		}
		return os.WriteFile(filepath.Join("web", "wasm_exec.js"), data, 0o644)
	}
	return fmt.Errorf("wasm_exec.js not found under %s", goroot)
}

// Build compiles the frontend and the server binary into bin/.
func Build() error {
	mg.Deps(BuildWasm)

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	cmd := exec.Command("go", "build", "-ldflags", ldflags(), "-o", out, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Dist produces a self-contained release binary in dist/.
func Dist() error {
	mg.Deps(BuildWasm)

	if err := os.MkdirAll("dist", 0o755); err != nil {
		return fmt.Errorf("creating dist: %w", err)
	}
	out := filepath.Join("dist", binName)
	cmd := exec.Command("go", "build", "-trimpath", "-ldflags", ldflags()+" -s -w", "-o", out, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build dist: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version())
	return nil
}

// Run builds everything and starts the server.
func Run() error {
	mg.Deps(Build)

	cmd := exec.Command(filepath.Join(binDir, binName))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

// Clean removes build artifacts.
func Clean() error {
	for _, path := range []string{binDir, "dist", wasmOut, filepath.Join("web", "wasm_exec.js")} {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	fmt.Println("Cleaned build artifacts.")
	return nil
}
