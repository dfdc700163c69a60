package unlocker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/pkg-unlocker/internal/config"
	"github.com/oshokin/pkg-unlocker/internal/installer"
	"github.com/oshokin/pkg-unlocker/internal/logger"
	"github.com/oshokin/pkg-unlocker/internal/repository/receipt"
)

// Options contains inputs for the unlocker entry point.
type Options struct {
	// ConfigPath is an optional path to the settings YAML file.
	ConfigPath string
	// SourceURL overrides the configured vendor download URL when non-empty.
	SourceURL string
	// OutputPath overrides the configured output package path when non-empty.
	OutputPath string
	// LogLevel overrides the configured console log level when non-empty.
	LogLevel string
}

// Option adjusts the runner; used by tests to substitute the toolset.
type Option func(*runner)

// WithToolset injects a custom toolset (primarily for tests).
func WithToolset(tools Toolset) Option {
	return func(r *runner) {
		if tools != nil {
			r.tools = tools
		}
	}
}

// WithReceiptRepository injects a custom receipt repository.
func WithReceiptRepository(repo receipt.Repository) Option {
	return func(r *runner) {
		if repo != nil {
			r.receipts = repo
		}
	}
}

// errAlreadyRunning indicates another unlocker instance holds the run marker.
var errAlreadyRunning = errors.New("the unlocker is already running")

// runner holds the mutable state for a single pipeline execution. Paths are
// threaded through this struct instead of globals so cleanup can always tell
// which transient artifacts are still live.
// It is intentionally unexported, call Run(ctx, Options) from callers.
type runner struct {
	cfg      *config.Config     // Pipeline settings, defaults applied.
	tools    Toolset            // Platform-specific tool boundary.
	receipts receipt.Repository // Record of the last successful run.

	bundlePath   string // Local copy of the installer bundle.
	outputPath   string // Final installable package.
	backupPath   string // Copy-aside of the original manifest.
	archivePath  string // Downloaded disk image, empty once deleted.
	mountPoint   string // Attached volume, empty once detached.
	workDir      string // Scratch parent directory, removed in cleanup.
	scratchDir   string // Expanded package tree inside workDir.
	stagedOutput string // Flattened package inside workDir before publish.

	gatesPatched    int  // Gate lines confirmed to carry the sentinel.
	skippedDownload bool // Acquisition was short-circuited by an existing bundle.
}

// Run executes the unlock pipeline and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options, extra ...Option) error {
	ctx = logger.WithName(ctx, "pkg-unlocker")

	r, err := newRunner(ctx, opts, extra...)
	if err != nil {
		return err
	}

	defer r.cleanup(ctx)

	if err = r.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Unlock run failed", "error", err)
		return err
	}

	logger.Info(ctx, "Unlock completed successfully")

	return nil
}

// newRunner loads settings and writes a marker to avoid concurrent runs.
func newRunner(ctx context.Context, opts *Options, extra ...Option) (*runner, error) {
	if IsUnlockerRunningNow(ctx) {
		return nil, errAlreadyRunning
	}

	marker, err := os.Create(MarkerFilename)
	if err != nil {
		return nil, err
	}

	if err = marker.Close(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_ = os.Remove(MarkerFilename)
		return nil, err
	}

	if opts.SourceURL != "" {
		cfg.SourceURL = opts.SourceURL
	}

	// An explicit flag beats the settings file.
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = cfg.OutputFilename
	}

	r := &runner{
		cfg:        cfg,
		tools:      newSystemToolset(),
		receipts:   receipt.NewFileRepository(""),
		bundlePath: cfg.PackageName,
		outputPath: outputPath,
		backupPath: installer.DefaultManifestName + ".backup",
	}

	for _, opt := range extra {
		opt(r)
	}

	return r, nil
}

// Run drives the pipeline stages in order. The first fatal error stops the
// run; cleanup is handled by the deferred call in the entry point.
func (r *runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	if err := r.acquireBundle(ctx); err != nil {
		return err
	}

	if err := r.expandBundle(ctx); err != nil {
		return err
	}

	if err := r.patchManifest(ctx); err != nil {
		return err
	}

	if err := r.flattenBundle(ctx); err != nil {
		return err
	}

	if err := r.publish(ctx); err != nil {
		return err
	}

	r.reportSuccess(ctx)

	return nil
}

// cleanup releases every transient artifact still live. It runs on every
// exit path, including interruption, so the canceled context is stripped
// before talking to the tools again.
func (r *runner) cleanup(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if r.mountPoint != "" {
		if err := r.tools.Detach(ctx, r.mountPoint); err != nil {
			logger.WarnKV(ctx, "Unable to detach volume, manual detach may be needed",
				"mount_point", r.mountPoint, "error", err)
		} else {
			r.mountPoint = ""
		}
	}

	if r.archivePath != "" {
		if _, err := os.Stat(r.archivePath); err == nil {
			_ = os.Remove(r.archivePath)
		}

		r.archivePath = ""
	}

	if r.workDir != "" {
		_ = os.RemoveAll(r.workDir)
		r.workDir = ""
	}

	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	logger.Info(ctx, "The unlocker has stopped")
}

// expandBundle unpacks the bundle into a scratch tree under a private
// temporary directory. The expansion target itself must not exist yet.
func (r *runner) expandBundle(ctx context.Context) error {
	workDir, err := os.MkdirTemp("", "pkg-unlocker-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	r.workDir = workDir
	r.scratchDir = filepath.Join(workDir, "expanded")

	logger.InfoKV(ctx, "Expanding package bundle",
		"bundle", r.bundlePath, "destination", r.scratchDir)

	if err = r.tools.Expand(ctx, r.bundlePath, r.scratchDir); err != nil {
		return fmt.Errorf("expand bundle: %w", err)
	}

	return nil
}
