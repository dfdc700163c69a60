package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultBinary is the packaging tool used when none is configured.
const DefaultBinary = "pkgutil"

var (
	// ErrDestinationExists is returned when the expansion target already exists.
	// The packaging tool refuses to expand over it, so the caller gets a
	// clear error up front instead of tool output.
	ErrDestinationExists = errors.New("expansion destination already exists")

	// ErrMissingOutput is returned when the tool reported success
	// but the flattened package is absent or empty.
	ErrMissingOutput = errors.New("flattened package is missing or empty")
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args ...string) (string, error)
}

// commandExecutor runs the real tool and captures its output.
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%s %s: %w: %s",
			binary, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// Option configures the tool wrapper.
type Option func(*Tool)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(t *Tool) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// Tool wraps packaging tool interactions.
type Tool struct {
	binary string
	exec   Executor
}

// New constructs a tool wrapper around the provided binary.
func New(binary string, opts ...Option) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}

	t := &Tool{
		binary: binary,
		exec:   commandExecutor{},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Expand unpacks the package bundle into destDir, which must not exist yet.
func (t *Tool) Expand(ctx context.Context, pkgPath, destDir string) error {
	if _, err := os.Stat(destDir); err == nil {
		return fmt.Errorf("%s: %w", destDir, ErrDestinationExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", destDir, err)
	}

	if _, err := t.exec.Run(ctx, t.binary, "--expand", pkgPath, destDir); err != nil {
		return fmt.Errorf("expand %s: %w", pkgPath, err)
	}

	return nil
}

// Flatten packs the expanded directory back into a single installable file.
// The output is verified on disk: a missing or empty artifact is an error
// even when the tool reported success.
func (t *Tool) Flatten(ctx context.Context, expandedDir, outputPath string) error {
	if _, err := t.exec.Run(ctx, t.binary, "--flatten", expandedDir, outputPath); err != nil {
		return fmt.Errorf("flatten %s: %w", expandedDir, err)
	}

	info, err := os.Stat(outputPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", outputPath, ErrMissingOutput)
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", outputPath, err)
	}

	if info.Size() == 0 {
		return fmt.Errorf("%s: %w", outputPath, ErrMissingOutput)
	}

	return nil
}
