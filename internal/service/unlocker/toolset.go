package unlocker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/oshokin/pkg-unlocker/internal/diskimage"
	"github.com/oshokin/pkg-unlocker/internal/installer"
)

var errBadHTTPStatus = errors.New("unexpected http status")

// Toolset is the narrow boundary to everything platform-specific the
// pipeline touches: the HTTP transfer, the disk-image mount facility and
// the package expand/flatten facility. Tests substitute it wholesale.
type Toolset interface {
	Download(ctx context.Context, fileURL, destPath string) error
	Attach(ctx context.Context, imagePath string) (string, error)
	Detach(ctx context.Context, mountPoint string) error
	Expand(ctx context.Context, pkgPath, destDir string) error
	Flatten(ctx context.Context, expandedDir, outputPath string) error
}

// systemToolset is the production Toolset backed by the real OS tools.
type systemToolset struct {
	client  *http.Client
	mounter *diskimage.Mounter
	tool    *installer.Tool
}

func newSystemToolset() *systemToolset {
	return &systemToolset{
		client:  http.DefaultClient,
		mounter: diskimage.New(diskimage.DefaultBinary),
		tool:    installer.New(installer.DefaultBinary),
	}
}

// Download streams the response body to destPath, following redirects.
// On any failure the partial file is removed so no archive is left behind.
func (t *systemToolset) Download(ctx context.Context, fileURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := t.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", fileURL, response.Status, errBadHTTPStatus)
	}

	outputFile, err := os.Create(destPath)
	if err != nil {
		return err
	}

	if _, err = io.Copy(outputFile, response.Body); err != nil {
		_ = outputFile.Close()
		_ = os.Remove(destPath)

		return err
	}

	if err = outputFile.Close(); err != nil {
		_ = os.Remove(destPath)

		return err
	}

	return nil
}

func (t *systemToolset) Attach(ctx context.Context, imagePath string) (string, error) {
	return t.mounter.Attach(ctx, imagePath)
}

func (t *systemToolset) Detach(ctx context.Context, mountPoint string) error {
	return t.mounter.Detach(ctx, mountPoint)
}

func (t *systemToolset) Expand(ctx context.Context, pkgPath, destDir string) error {
	return t.tool.Expand(ctx, pkgPath, destDir)
}

func (t *systemToolset) Flatten(ctx context.Context, expandedDir, outputPath string) error {
	return t.tool.Flatten(ctx, expandedDir, outputPath)
}
