// Package installer drives the OS packaging tool (pkgutil on macOS) to
// expand an installer package into a directory tree and flatten it back,
// and patches the version gate inside the expanded Distribution manifest.
//
// The gate pattern is the one subtlety of the whole pipeline: it must hit
// every quoted threshold of the known comparison shape and nothing else in
// the file, so it lives here as a single well-tested unit.
package installer
