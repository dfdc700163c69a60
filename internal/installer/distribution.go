package installer

import (
	"regexp"
	"strings"
)

// DefaultManifestName is the declarative manifest inside an expanded package.
const DefaultManifestName = "Distribution"

// gatePattern matches the known version-gate shape: a comparison of the live
// product version against a quoted two-part numeric threshold, e.g.
//
//	compareVersions(system.version.ProductVersion, '26.1')
//
// The surrounding call context is part of the match so unrelated numeric
// strings elsewhere in the manifest are never touched. Both quote styles are
// accepted; the quote must be paired, which the replacement preserves.
var gatePattern = regexp.MustCompile(
	`(compareVersions\s*\(\s*system\.version\.ProductVersion\s*,\s*)('\d+\.\d+'|"\d+\.\d+")`)

// PatchGates rewrites every version-gate threshold in the manifest to the
// sentinel value, leaving all other bytes unchanged. The boolean reports
// whether any gate was found; when it is false the manifest is returned
// verbatim.
func PatchGates(manifest, sentinel string) (string, bool) {
	if !gatePattern.MatchString(manifest) {
		return manifest, false
	}

	patched := gatePattern.ReplaceAllStringFunc(manifest, func(match string) string {
		groups := gatePattern.FindStringSubmatch(match)

		// Keep the original quote style around the sentinel.
		quote := groups[2][:1]

		return groups[1] + quote + sentinel + quote
	})

	return patched, true
}

// GateLines returns the trimmed manifest lines containing a version-gate
// comparison, used to show the operator what the patch produced.
func GateLines(manifest string) []string {
	var lines []string

	for _, line := range strings.Split(manifest, "\n") {
		if gatePattern.MatchString(line) {
			lines = append(lines, strings.TrimSpace(line))
		}
	}

	return lines
}

// Excerpt returns up to maxLines leading lines of the manifest for
// diagnostics when no gate pattern is recognized.
func Excerpt(manifest string, maxLines int) string {
	lines := strings.Split(manifest, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	return strings.Join(lines, "\n")
}
