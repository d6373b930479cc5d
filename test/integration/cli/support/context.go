// Package support holds the godog step definitions for the panostitch CLI.
package support

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	TempDir string
	RigDir  string

	// Environment variables to restore after the scenario
	savedEnv map[string]*string
}

// NewTestContext creates a new test context with its own temporary directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "panostitch-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		TempDir:  tempDir,
		RigDir:   filepath.Join(tempDir, "rig"),
		savedEnv: make(map[string]*string),
	}, nil
}

// Cleanup restores the environment and removes the temporary directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	for name, value := range testCtx.savedEnv {
		var err error
		if value == nil {
			err = os.Unsetenv(name)
		} else {
			err = os.Setenv(name, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %s: %w", name, err))
		}
	}
	testCtx.savedEnv = make(map[string]*string)

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}

// SetEnv sets an environment variable for the rest of the scenario.
func (testCtx *TestContext) SetEnv(name, value string) error {
	if _, saved := testCtx.savedEnv[name]; !saved {
		if old, ok := os.LookupEnv(name); ok {
			testCtx.savedEnv[name] = &old
		} else {
			testCtx.savedEnv[name] = nil
		}
	}
	return os.Setenv(name, value)
}

// substitute expands the {rig} and {tmp} placeholders of a step argument.
func (testCtx *TestContext) substitute(s string) string {
	return strings.NewReplacer("{rig}", testCtx.RigDir, "{tmp}", testCtx.TempDir).Replace(s)
}

// path resolves a scenario file name against the temporary directory.
func (testCtx *TestContext) path(name string) string {
	name = testCtx.substitute(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}
