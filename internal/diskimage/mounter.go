package diskimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultBinary is the disk-image tool used when none is configured.
const DefaultBinary = "hdiutil"

// volumePrefix marks the mount-point column in attach output.
const volumePrefix = "/Volumes/"

// ErrNoMountPoint is returned when attach succeeds but its output
// contains no recognizable mount point.
var ErrNoMountPoint = errors.New("no mount point found in attach output")

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args ...string) (string, error)
}

// commandExecutor runs the real tool and captures its output.
type commandExecutor struct{}

// Run executes the binary and returns its stdout.
// Stderr is folded into the error on failure.
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

// Option configures the mounter.
type Option func(*Mounter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(m *Mounter) {
		if exec != nil {
			m.exec = exec
		}
	}
}

// Mounter wraps disk-image tool interactions.
type Mounter struct {
	binary string
	exec   Executor
}

// New constructs a mounter around the provided tool binary.
func New(binary string, opts ...Option) *Mounter {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}

	m := &Mounter{
		binary: binary,
		exec:   commandExecutor{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Attach mounts the image read-only and returns the discovered mount point.
// ErrNoMountPoint is returned when the tool reported success but its output
// carried no volume path; callers may then fall back to a fixed path.
func (m *Mounter) Attach(ctx context.Context, imagePath string) (string, error) {
	output, err := m.exec.Run(ctx, m.binary, "attach", "-nobrowse", "-readonly", imagePath)
	if err != nil {
		return "", fmt.Errorf("attach %s: %w", imagePath, err)
	}

	mountPoint := ParseAttachOutput(output)
	if mountPoint == "" {
		return "", fmt.Errorf("attach %s: %w", imagePath, ErrNoMountPoint)
	}

	return mountPoint, nil
}

// Detach unmounts the volume at the provided mount point.
func (m *Mounter) Detach(ctx context.Context, mountPoint string) error {
	if _, err := m.exec.Run(ctx, m.binary, "detach", mountPoint); err != nil {
		return fmt.Errorf("detach %s: %w", mountPoint, err)
	}

	return nil
}

// ParseAttachOutput extracts the mount point from attach output.
//
// The tool prints one line per device entry with tab-separated columns, the
// mounted filesystem entry ending in the volume path:
//
//	/dev/disk4          GUID_partition_scheme
//	/dev/disk4s2        Apple_HFS            /Volumes/Vendor Installer
//
// The last volume path seen wins; volume names may contain spaces, so only
// tabs are treated as column separators. An empty string means no mount
// point was present.
func ParseAttachOutput(output string) string {
	var mountPoint string

	for _, line := range strings.Split(output, "\n") {
		for _, field := range strings.Split(line, "\t") {
			field = strings.TrimSpace(field)
			if strings.HasPrefix(field, volumePrefix) {
				mountPoint = field
			}
		}
	}

	return mountPoint
}
