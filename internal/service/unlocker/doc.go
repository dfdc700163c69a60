// Package unlocker runs the one-shot unlock pipeline: download the vendor
// disk image, pull the installer bundle out of it, rewrite the version gate
// in the expanded manifest, and flatten everything back into an installable
// package.
//
// Every transient artifact (mount point, downloaded archive, scratch
// expansion directory) is released on all exit paths, including interruption.
// The pipeline is strictly sequential; the only shared resource is the
// working directory.
package unlocker
