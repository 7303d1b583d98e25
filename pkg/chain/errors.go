package chain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of failure behind an AIError
type ErrorCode string

const (
	CodeProviderNotFound         ErrorCode = "ProviderNotFound"
	CodePromptNotFound           ErrorCode = "PromptNotFound"
	CodeToolNotFound             ErrorCode = "ToolNotFound"
	CodeMaxDepthReached          ErrorCode = "MaxDepthReached"
	CodeInvalidJSONResponse      ErrorCode = "InvalidJSONResponse"
	CodeResponseValidationFailed ErrorCode = "ResponseValidationFailed"
	CodeInvalidToolCallStructure ErrorCode = "InvalidToolCallStructure"
	CodeToolExecutionError       ErrorCode = "ToolExecutionError"
	CodeInvalidCondition         ErrorCode = "InvalidCondition"
	CodeInvalidTransition        ErrorCode = "InvalidTransition"
	CodeExecutionTimeout         ErrorCode = "ExecutionTimeout"
	CodeRequestFailed            ErrorCode = "RequestFailed"
	CodeAllProvidersFailed       ErrorCode = "AllProvidersFailed"
	CodeCanceled                 ErrorCode = "Canceled"
	CodeUnexpected               ErrorCode = "UnexpectedError"
	CodeInvalidConfig            ErrorCode = "InvalidConfig"
)

// AIError is the single error type returned by the engine.
// Details carries structured context such as schema validation errors.
type AIError struct {
	Code    ErrorCode
	Message string
	Details interface{}
	Cause   error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AIError) Unwrap() error {
	return e.Cause
}

// Is matches any AIError with the same code, so callers can test
// errors.Is(err, chain.ErrMaxDepthReached).
func (e *AIError) Is(target error) bool {
	var t *AIError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Sentinels for errors.Is checks
var (
	ErrProviderNotFound         = &AIError{Code: CodeProviderNotFound, Message: "provider not found"}
	ErrPromptNotFound           = &AIError{Code: CodePromptNotFound, Message: "prompt not found"}
	ErrToolNotFound             = &AIError{Code: CodeToolNotFound, Message: "tool not found"}
	ErrMaxDepthReached          = &AIError{Code: CodeMaxDepthReached, Message: "max depth reached"}
	ErrInvalidJSONResponse      = &AIError{Code: CodeInvalidJSONResponse, Message: "invalid JSON response"}
	ErrResponseValidationFailed = &AIError{Code: CodeResponseValidationFailed, Message: "response validation failed"}
	ErrInvalidToolCallStructure = &AIError{Code: CodeInvalidToolCallStructure, Message: "invalid tool call structure"}
	ErrToolExecution            = &AIError{Code: CodeToolExecutionError, Message: "tool execution error"}
	ErrInvalidCondition         = &AIError{Code: CodeInvalidCondition, Message: "invalid condition"}
	ErrInvalidTransition        = &AIError{Code: CodeInvalidTransition, Message: "invalid transition"}
	ErrExecutionTimeout         = &AIError{Code: CodeExecutionTimeout, Message: "execution timeout"}
	ErrRequestFailed            = &AIError{Code: CodeRequestFailed, Message: "request failed"}
	ErrAllProvidersFailed       = &AIError{Code: CodeAllProvidersFailed, Message: "all providers failed"}
	ErrCanceled                 = &AIError{Code: CodeCanceled, Message: "canceled"}
	ErrUnexpected               = &AIError{Code: CodeUnexpected, Message: "unexpected error"}
	ErrInvalidConfig            = &AIError{Code: CodeInvalidConfig, Message: "invalid config"}
)

func newError(code ErrorCode, format string, args ...interface{}) *AIError {
	return &AIError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, cause error, format string, args ...interface{}) *AIError {
	return &AIError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AsAIError returns err as an AIError if it is one
func AsAIError(err error) (*AIError, bool) {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr, true
	}
	return nil, false
}

// normalizeError converts any error into an AIError. The second result
// reports whether the error was unexpected (not already an AIError).
func normalizeError(err error) (*AIError, bool) {
	if aiErr, ok := AsAIError(err); ok {
		return aiErr, false
	}
	if errors.Is(err, context.Canceled) {
		return wrapError(CodeCanceled, err, "run canceled"), false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(CodeExecutionTimeout, err, "deadline exceeded"), false
	}
	return wrapError(CodeUnexpected, err, "unexpected error"), true
}

// isFatalConfigError reports errors that provider fallback cannot fix
func isFatalConfigError(err *AIError) bool {
	switch err.Code {
	case CodeProviderNotFound, CodePromptNotFound, CodeToolNotFound, CodeInvalidConfig, CodeCanceled:
		return true
	}
	return false
}
