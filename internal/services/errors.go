package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks missing or invalid configuration. Fatal before any I/O.
	ErrConfiguration = errors.New("configuration error")
	// ErrPathSafety marks a path escaping its expected base. Aborts the current operation.
	ErrPathSafety = errors.New("path safety error")
	// ErrFilesystem marks per-file link or path failures. Logged and skipped.
	ErrFilesystem = errors.New("filesystem error")
	// ErrConnectivity marks an unreachable dependent service. Retried on a blocking wait.
	ErrConnectivity = errors.New("connectivity error")
	// ErrReconcile marks a candidate that could not be repaired. Dropped from the batch.
	ErrReconcile = errors.New("reconcile error")
	// ErrValidation marks a request a dependent service rejected as malformed.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a catalog entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks everything else.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later exit-code classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error must abort the invocation rather than
// being skipped per file or per candidate.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrPathSafety) ||
		errors.Is(err, ErrConnectivity)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
