// Package receipt persists the record of the last successful pipeline run.
//
// The receipt lets a re-run that finds the package bundle already on disk
// tell the operator what the existing artifact is and when it was produced,
// instead of silently repeating the work.
package receipt
