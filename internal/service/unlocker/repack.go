package unlocker

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/pkg-unlocker/internal/logger"
	"github.com/oshokin/pkg-unlocker/internal/repository/receipt"
)

// flattenBundle packs the (possibly patched) scratch tree into a staged
// artifact inside the scratch parent. The staged file is verified on disk
// by the tool wrapper before this returns.
func (r *runner) flattenBundle(ctx context.Context) error {
	r.stagedOutput = filepath.Join(r.workDir, filepath.Base(r.outputPath))

	logger.InfoKV(ctx, "Flattening package", "output", r.stagedOutput)

	if err := r.tools.Flatten(ctx, r.scratchDir, r.stagedOutput); err != nil {
		return fmt.Errorf("flatten package: %w", err)
	}

	return nil
}

// publish moves the staged artifact to its final path atomically with
// checksum verification, then records the run receipt. The final path never
// holds a partial package.
func (r *runner) publish(ctx context.Context) error {
	checksum, err := fileChecksum(r.stagedOutput)
	if err != nil {
		return err
	}

	staged, err := os.Open(r.stagedOutput)
	if err != nil {
		return err
	}

	defer func() {
		_ = staged.Close()
	}()

	// go-update replaces the target in place and refuses a missing one,
	// so a fresh run gets an empty target to swap out.
	if _, err = os.Stat(r.outputPath); err != nil && os.IsNotExist(err) {
		var target *os.File

		if target, err = os.Create(r.outputPath); err != nil {
			return err
		}

		if err = target.Close(); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: r.outputPath,
		TargetMode: outputFileMode,
		Checksum:   checksum,
		Hash:       defaultChecksumFunction,
	}

	if err = goupdate.Apply(staged, options); err != nil {
		return fmt.Errorf("publish package: %w", err)
	}

	record := &receipt.Receipt{
		SourceURL:    r.cfg.SourceURL,
		OutputPath:   r.outputPath,
		Checksum:     base64.StdEncoding.EncodeToString(checksum),
		GatesPatched: r.gatesPatched,
		CompletedAt:  time.Now().UTC(),
	}

	if err = r.receipts.Save(ctx, record); err != nil {
		logger.WarnKV(ctx, "Unable to save run receipt", "error", err)
	}

	return nil
}
