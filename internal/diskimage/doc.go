// Package diskimage wraps the OS disk-image tool (hdiutil on macOS) for
// attaching an image as a filesystem volume and detaching it again.
//
// The mount point is discovered by parsing the attach tool's textual output,
// tolerating volume-name variation. Command execution sits behind a small
// Executor interface so tests can stub the tool.
package diskimage
