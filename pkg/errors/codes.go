package errors

import (
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeCancelled          ErrorCode = "COMMON_017"
)

// Aliases used across layers.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")

	CodeDatabaseError     = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeMessageQueueError = ErrCodeExternalService
	CodeStorageError      = ErrCodeExternalService
)

// Input Module Error Codes
const (
	ErrCodePrecondition     ErrorCode = "INPUT_001"
	ErrCodeInputUnavailable ErrorCode = "INPUT_002"
	ErrCodeInputStale       ErrorCode = "INPUT_003"
	ErrCodeMandatoryInput   ErrorCode = "INPUT_004"
	ErrCodeInputSpecInvalid ErrorCode = "INPUT_005"
)

// Engine Module Error Codes
const (
	ErrCodeRemoteLimitExceeded ErrorCode = "ENGINE_001"
	ErrCodeGeometry            ErrorCode = "ENGINE_002"
	ErrCodeDatasetLoad         ErrorCode = "ENGINE_003"
)

// Export Module Error Codes
const (
	ErrCodeExportExists      ErrorCode = "EXPORT_001"
	ErrCodeExportWriteFailed ErrorCode = "EXPORT_002"
)

// Job Module Error Codes
const (
	ErrCodeInvalidTransition ErrorCode = "JOB_001"
	ErrCodeWaitExhausted     ErrorCode = "JOB_002"
	ErrCodeDeferredJobFailed ErrorCode = "JOB_003"
	ErrCodeRunSkipped        ErrorCode = "JOB_004"
	ErrCodeJobNotFound       ErrorCode = "JOB_005"
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeCancelled:          "operation cancelled",

	ErrCodePrecondition:     "precondition failed",
	ErrCodeInputUnavailable: "input dataset unavailable",
	ErrCodeInputStale:       "input dataset too old",
	ErrCodeMandatoryInput:   "mandatory input dataset unavailable",
	ErrCodeInputSpecInvalid: "invalid input declaration",

	ErrCodeRemoteLimitExceeded: "remote computation limit exceeded",
	ErrCodeGeometry:            "geometry operation failed",
	ErrCodeDatasetLoad:         "failed to load dataset",

	ErrCodeExportExists:      "export target already exists",
	ErrCodeExportWriteFailed: "failed to write export",

	ErrCodeInvalidTransition: "invalid status transition",
	ErrCodeWaitExhausted:     "deferred jobs did not finish within the retry budget",
	ErrCodeDeferredJobFailed: "deferred job failed",
	ErrCodeRunSkipped:        "run skipped",
	ErrCodeJobNotFound:       "deferred job not found",
}

// ErrorCodeExitStatus maps ErrorCodes to process exit statuses used by the CLI.
var ErrorCodeExitStatus = map[ErrorCode]int{
	ErrCodeBadRequest:          2,
	ErrCodeValidation:          2,
	ErrCodePrecondition:        3,
	ErrCodeMandatoryInput:      3,
	ErrCodeInputSpecInvalid:    3,
	ErrCodeRemoteLimitExceeded: 4,
	ErrCodeDeferredJobFailed:   4,
	ErrCodeWaitExhausted:       5,
	ErrCodeTimeout:             5,
	ErrCodeCancelled:           130,
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ExitStatusForCode returns the process exit status for an ErrorCode.
func ExitStatusForCode(code ErrorCode) int {
	if code == CodeOK {
		return 0
	}
	if status, ok := ErrorCodeExitStatus[code]; ok {
		return status
	}
	return 1
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
