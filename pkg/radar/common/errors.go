package common

// ErrorCode classifies pipeline failures
type ErrorCode string

// Error codes
const (
	ErrCodeInvalidConfig       ErrorCode = "INVALID_CONFIG"
	ErrCodeInsufficientSamples ErrorCode = "INSUFFICIENT_SAMPLES"
	ErrCodeConfigMismatch      ErrorCode = "CONFIG_MISMATCH"
	ErrCodeLengthMismatch      ErrorCode = "LENGTH_MISMATCH"
	ErrCodeMismatchedConfig    ErrorCode = "MISMATCHED_CONFIG"
	ErrCodePhaseUnavailable    ErrorCode = "PHASE_UNAVAILABLE"
	ErrCodeEmptyInput          ErrorCode = "EMPTY_INPUT"
	ErrCodeDomainMismatch      ErrorCode = "DOMAIN_MISMATCH"
	ErrCodeStackFinalized      ErrorCode = "STACK_FINALIZED"
	ErrCodeInvalidRecording    ErrorCode = "INVALID_RECORDING"
)

// Sentinels for errors.Is. Any *RadarError with the same code matches.
var (
	ErrInvalidConfig       = &RadarError{Code: ErrCodeInvalidConfig, Message: "invalid chirp configuration"}
	ErrInsufficientSamples = &RadarError{Code: ErrCodeInsufficientSamples, Message: "insufficient samples"}
	ErrConfigMismatch      = &RadarError{Code: ErrCodeConfigMismatch, Message: "chirp configuration mismatch"}
	ErrLengthMismatch      = &RadarError{Code: ErrCodeLengthMismatch, Message: "sample length mismatch"}
	ErrMismatchedConfig    = &RadarError{Code: ErrCodeMismatchedConfig, Message: "spectrum and estimate do not match"}
	ErrPhaseUnavailable    = &RadarError{Code: ErrCodePhaseUnavailable, Message: "phase unavailable"}
	ErrEmptyInput          = &RadarError{Code: ErrCodeEmptyInput, Message: "empty input"}
	ErrDomainMismatch      = &RadarError{Code: ErrCodeDomainMismatch, Message: "stacking domain mismatch"}
	ErrStackFinalized      = &RadarError{Code: ErrCodeStackFinalized, Message: "stack already finalized"}
	ErrInvalidRecording    = &RadarError{Code: ErrCodeInvalidRecording, Message: "invalid recording"}
)

// RadarError represents a range-processing failure
type RadarError struct {
	Code    ErrorCode `json:"code"`
	Op      string    `json:"op,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *RadarError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *RadarError) Unwrap() error {
	return e.Cause
}

// Is matches any RadarError carrying the same code
func (e *RadarError) Is(target error) bool {
	t, ok := target.(*RadarError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewRadarError creates a new radar error
func NewRadarError(code ErrorCode, op, message string, cause error) *RadarError {
	return &RadarError{
		Code:    code,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}
