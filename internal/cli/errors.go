// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for fieldref commands.
//
// Commands always return errors; Execute decides how to display them.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/fieldref/internal/export"
	"github.com/jeranaias/fieldref/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid arguments or rejected input
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitNotFoundError indicates a section or item does not exist
	ExitNotFoundError = 7
	// ExitBusyError indicates an export is running or rate limited
	ExitBusyError = 9
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports bad command-line input.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// NewUsageError creates a UsageError.
func NewUsageError(msg string) error {
	return &UsageError{Message: msg}
}

// ConfigError wraps failures to load configuration or open logs.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as a JSON error response in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		NewJSONErrorResponse("fieldref", err).Print(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErr *ConfigError
	switch {
	case errors.As(err, &usage), errors.Is(err, storage.ErrValidation):
		return ExitUsageError
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, export.ErrExportInProgress), errors.Is(err, export.ErrRateLimited):
		return ExitBusyError
	}
	return ExitGeneralError
}
