package unlocker

import (
	"context"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/pkg-unlocker/internal/logger"
)

// reportSuccess prints the artifact location, its size and the install
// guidance the operator needs next.
func (r *runner) reportSuccess(ctx context.Context) {
	var size string

	if info, err := os.Stat(r.outputPath); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	} else {
		size = "unknown"
	}

	logger.InfoKV(ctx, "Installable package rebuilt",
		"path", r.outputPath,
		"size", size,
		"gates_patched", r.gatesPatched)

	r.printNextSteps(ctx)
}

// printNextSteps logs human-readable guidance for installing the rebuilt package.
func (r *runner) printNextSteps(ctx context.Context) {
	var builder strings.Builder

	builder.WriteString("Install the rebuilt package one of two ways:\n")
	builder.WriteString("1. Double-click ")
	builder.WriteString(r.outputPath)
	builder.WriteString(" in Finder and follow the installer.\n")
	builder.WriteString("2. Or from a terminal: sudo installer -pkg ")
	builder.WriteString(r.outputPath)
	builder.WriteString(" -target /\n\n")

	builder.WriteString("The rebuilt package is not signed. If the installer refuses to open,\n")
	builder.WriteString("Control-click the package and choose Open, or clear the quarantine flag:\n")
	builder.WriteString("  xattr -d com.apple.quarantine ")
	builder.WriteString(r.outputPath)

	if r.gatesPatched == 0 {
		builder.WriteString("\n\nNote: no version gate was rewritten in this run; ")
		builder.WriteString("the package was repackaged unchanged.")
	}

	logger.Info(ctx, builder.String())
}
