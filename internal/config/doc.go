// Package config defines the pipeline settings and provides helpers to load,
// validate and save them in YAML format.
//
// Every setting has an embedded default, so running without a settings file
// reproduces the fixed-constant behavior of the original tool. The sentinel
// version written into patched manifests is deliberately configuration, not a
// constant: "far enough in the future" is a heuristic the operator may need
// to adjust.
package config
