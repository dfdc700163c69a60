// Package logger wraps zap with a global sugared logger and context helpers.
//
// Pipeline stages accept a context and log through it, so every message
// carries the component name attached via WithName. Level configuration and
// parsing utilities are included for wiring the log_level setting.
package logger
