package unlocker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/pkg-unlocker/internal/diskimage"
	"github.com/oshokin/pkg-unlocker/internal/logger"
	"github.com/oshokin/pkg-unlocker/internal/repository/receipt"
)

// errBundleNotFound is returned when the mounted volume holds no installer bundle.
var errBundleNotFound = errors.New("no installer bundle found on volume")

// packageExtension identifies package-like bundles on the volume.
const packageExtension = ".pkg"

// acquireBundle produces a local copy of the installer bundle: either the
// one already on disk (idempotent re-run) or by downloading and mounting
// the vendor disk image.
func (r *runner) acquireBundle(ctx context.Context) error {
	if _, err := os.Stat(r.bundlePath); err == nil {
		r.skippedDownload = true

		logger.WarnKV(ctx, "Package bundle already present, skipping download",
			"bundle", r.bundlePath)
		r.reportPreviousRun(ctx)

		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", r.bundlePath, err)
	}

	logger.InfoKV(ctx, "Downloading disk image",
		"url", r.cfg.SourceURL, "archive", r.cfg.ArchiveFilename)

	// Track the archive before the transfer so an interrupted download
	// still gets swept by cleanup.
	r.archivePath = r.cfg.ArchiveFilename

	if err := r.tools.Download(ctx, r.cfg.SourceURL, r.archivePath); err != nil {
		return fmt.Errorf("download disk image: %w", err)
	}

	mountPoint, err := r.attachImage(ctx)
	if err != nil {
		return err
	}

	r.mountPoint = mountPoint

	logger.InfoKV(ctx, "Disk image attached", "mount_point", mountPoint)

	bundleName, err := r.locateBundle(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Copying installer bundle to working directory",
		"bundle", bundleName)

	if err = copyFileOrDir(filepath.Join(mountPoint, bundleName), r.bundlePath); err != nil {
		return fmt.Errorf("copy bundle from volume: %w", err)
	}

	r.detachBestEffort(ctx)

	if err = os.Remove(r.archivePath); err != nil {
		logger.WarnKV(ctx, "Unable to delete downloaded archive",
			"archive", r.archivePath, "error", err)
	} else {
		r.archivePath = ""
	}

	return nil
}

// attachImage mounts the downloaded image. When the attach output yields no
// mount point, a configured fixed volume path is accepted if it exists.
func (r *runner) attachImage(ctx context.Context) (string, error) {
	mountPoint, err := r.tools.Attach(ctx, r.archivePath)
	if err == nil {
		return mountPoint, nil
	}

	if errors.Is(err, diskimage.ErrNoMountPoint) && r.cfg.FallbackVolume != "" {
		if _, statErr := os.Stat(r.cfg.FallbackVolume); statErr == nil {
			logger.WarnKV(ctx, "Mount point not found in attach output, using fallback volume",
				"volume", r.cfg.FallbackVolume)

			return r.cfg.FallbackVolume, nil
		}
	}

	return "", fmt.Errorf("attach disk image: %w", err)
}

// locateBundle searches the mounted volume for an installer bundle,
// preferring an exact (case-insensitive) match on the configured name and
// falling back to the first package-like bundle found.
func (r *runner) locateBundle(ctx context.Context) (string, error) {
	entries, err := os.ReadDir(r.mountPoint)
	if err != nil {
		return "", fmt.Errorf("read volume %s: %w", r.mountPoint, err)
	}

	var fallback string

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		names = append(names, name)

		if !strings.EqualFold(filepath.Ext(name), packageExtension) {
			continue
		}

		if strings.EqualFold(name, r.cfg.PackageName) {
			return name, nil
		}

		if fallback == "" {
			fallback = name
		}
	}

	if fallback != "" {
		logger.WarnKV(ctx, "Expected bundle name not found, using first package-like bundle",
			"expected", r.cfg.PackageName, "bundle", fallback)

		return fallback, nil
	}

	// The listing is the only diagnostic the operator gets here.
	logger.ErrorKV(ctx, "No installer bundle on volume",
		"volume", r.mountPoint, "listing", strings.Join(names, ", "))

	return "", errBundleNotFound
}

// detachBestEffort unmounts the volume after extraction. Failure is only a
// warning, the acquisition already succeeded; cleanup retries the detach.
func (r *runner) detachBestEffort(ctx context.Context) {
	if err := r.tools.Detach(ctx, r.mountPoint); err != nil {
		logger.WarnKV(ctx, "Unable to detach volume, will retry during cleanup",
			"mount_point", r.mountPoint, "error", err)

		return
	}

	r.mountPoint = ""
}

// reportPreviousRun tells the operator what the last completed run produced.
func (r *runner) reportPreviousRun(ctx context.Context) {
	previous, err := r.receipts.Load(ctx)
	if err != nil {
		if !errors.Is(err, receipt.ErrNotFound) {
			logger.WarnKV(ctx, "Unable to read run receipt", "error", err)
		}

		return
	}

	logger.InfoKV(ctx, "Previous run on record",
		"output", previous.OutputPath,
		"gates_patched", previous.GatesPatched,
		"completed_at", previous.CompletedAt)
}
