// Package errors provides severity-aware error types.
package errors

import "fmt"

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// PipelineError is a structured error with context.
type PipelineError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Subject     string   `json:"subject,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

func (e *PipelineError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("[%s] %s: %s (subject: %s)", e.Severity, e.Code, e.Message, e.Subject)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// Error codes
const (
	ErrCodeUnknownCurrency = "UNKNOWN_CURRENCY"
	ErrCodeNoRateHistory   = "NO_RATE_HISTORY"
	ErrCodeRateSource      = "RATE_SOURCE_UNAVAILABLE"
	ErrCodeInvalidAnswer   = "INVALID_ANSWER"
	ErrCodeStoreFailed     = "STORE_FAILED"
	ErrCodeExportFailed    = "EXPORT_FAILED"
)

// NewUnknownCurrencyError creates an error for an unresolvable currency symbol.
// Mispricing data silently is worse than failing the run, so this is fatal.
func NewUnknownCurrencyError(symbol string) *PipelineError {
	return &PipelineError{
		Code:        ErrCodeUnknownCurrency,
		Message:     fmt.Sprintf("Cannot resolve currency symbol: %q", symbol),
		Severity:    SeverityFatal,
		Recoverable: false,
	}
}

// NewNoRateHistoryError creates an error for a currency absent from the
// exchange-rate table.
func NewNoRateHistoryError(iso string) *PipelineError {
	return &PipelineError{
		Code:        ErrCodeNoRateHistory,
		Message:     fmt.Sprintf("No exchange-rate history for currency: %s", iso),
		Severity:    SeverityFatal,
		Recoverable: false,
	}
}

// NewRateSourceError creates an error for an unreachable or malformed
// rate source.
func NewRateSourceError(source string, cause error) *PipelineError {
	return &PipelineError{
		Code:        ErrCodeRateSource,
		Message:     fmt.Sprintf("Exchange-rate source failed: %v", cause),
		Severity:    SeverityFatal,
		Subject:     source,
		Recoverable: false,
	}
}

// NewInvalidAnswerError creates an error for a worker answer that
// cannot be interpreted.
func NewInvalidAnswerError(reportID, detail string) *PipelineError {
	return &PipelineError{
		Code:        ErrCodeInvalidAnswer,
		Message:     detail,
		Severity:    SeverityError,
		Subject:     reportID,
		Recoverable: false,
	}
}
