package model

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes carried by fatal failures.
const (
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeDeltaUnreadable   = "DELTA_UNREADABLE"
	ErrCodeParseTimeout      = "PARSE_TIMEOUT"
	ErrCodeParseFailed       = "PARSE_FAILED"
	ErrCodeConnectionFailed  = "CONNECTION_FAILED"
	ErrCodeVaultFailed       = "VAULT_FAILED"
	ErrCodeReportWriteFailed = "REPORT_WRITE_FAILED"
)

// ScanError is a fatal, run-terminating failure with a stable code
type ScanError struct {
	Code    string
	Message string
	Err     error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// NewScanError wraps err with a stable code and context message
func NewScanError(code, message string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Err: err}
}

// ErrCode extracts the stable code from err, or empty when err carries none
func ErrCode(err error) string {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
