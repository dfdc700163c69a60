package unlocker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/pkg-unlocker/internal/installer"
	"github.com/oshokin/pkg-unlocker/internal/logger"
)

// patchManifest rewrites the version-gate thresholds inside the expanded
// manifest. A missing manifest or an unrecognized pattern is not fatal: the
// package may already be unrestricted, so the pipeline repackages as-is.
func (r *runner) patchManifest(ctx context.Context) error {
	manifestPath := filepath.Join(r.scratchDir, installer.DefaultManifestName)

	contents, err := os.ReadFile(filepath.Clean(manifestPath))
	if errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "No manifest inside the expanded package, repackaging as-is",
			"path", manifestPath)

		return nil
	} else if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	// Copy-aside backup before any mutation. It lands in the working
	// directory, outside the scratch tree, so it survives the run.
	if err = os.WriteFile(r.backupPath, contents, outputFileMode); err != nil {
		return fmt.Errorf("back up manifest: %w", err)
	}

	logger.InfoKV(ctx, "Manifest backed up", "path", r.backupPath)

	patched, found := installer.PatchGates(string(contents), r.cfg.SentinelVersion)
	if !found {
		logger.Warn(ctx, "No known version-gate pattern found, the package may already be unrestricted")
		logger.Infof(ctx, "Manifest excerpt:\n%s",
			installer.Excerpt(string(contents), manifestExcerptLines))

		return nil
	}

	info, err := os.Stat(manifestPath)
	if err != nil {
		return fmt.Errorf("stat manifest: %w", err)
	}

	if err = os.WriteFile(manifestPath, []byte(patched), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write patched manifest: %w", err)
	}

	r.verifyPatch(ctx, patched)

	return nil
}

// verifyPatch confirms the substitution by searching the rewritten manifest
// for gate lines carrying the sentinel and reports them to the operator.
func (r *runner) verifyPatch(ctx context.Context, patched string) {
	var confirmed []string

	for _, line := range installer.GateLines(patched) {
		if strings.Contains(line, r.cfg.SentinelVersion) {
			confirmed = append(confirmed, line)
		}
	}

	r.gatesPatched = len(confirmed)

	if len(confirmed) == 0 {
		logger.Warn(ctx, "Sentinel value not found after substitution")
		return
	}

	for _, line := range confirmed {
		logger.InfoKV(ctx, "Version gate neutralized", "line", line)
	}
}
