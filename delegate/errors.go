package delegate

import (
	"errors"
	"fmt"
)

// Error codes from spec.md section 7's taxonomy.
const (
	CodeDelegationPlanInvalid = "DELEGATION_PLAN_INVALID"
	CodeValidationError       = "VALIDATION_ERROR"
	CodeInvalidStrategy       = "INVALID_STRATEGY"

	CodeNotFound       = "NOT_FOUND"
	CodeSiteNotFound   = "SITE_NOT_FOUND"
	CodeSearchNotFound = "SEARCH_NOT_FOUND"
	CodeStepNotFound   = "STEP_NOT_FOUND"

	CodeIncompatibleSteps    = "INCOMPATIBLE_STEPS"
	CodeMissingCombineInputs = "MISSING_COMBINE_INPUTS"
	CodeCombineFailed        = "COMBINE_FAILED"

	CodeNoStepsCreated = "NO_STEPS_CREATED"
	CodeSubkaniFailed  = "SUBKANI_FAILED"

	CodeWDKError = "WDK_ERROR"

	CodeInternalError = "INTERNAL_ERROR"
	CodeRateLimited   = "RATE_LIMITED"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
)

// ToolError is the linked error type every component boundary returns,
// mirroring the teacher's runtime/agent/toolerrors.ToolError: a stable Code,
// a human-readable Message, an optional wrapped Cause, and a bag of
// structured Fields mirroring the Python tool_error() helper's keyword
// extras (nodeId, operator, detail, ...).
type ToolError struct {
	Code    string
	Message string
	Cause   error
	Fields  map[string]any
}

// New creates a ToolError with no cause.
func New(code, message string) *ToolError {
	return &ToolError{Code: code, Message: message}
}

// NewWithCause creates a ToolError wrapping cause.
func NewWithCause(code, message string, cause error) *ToolError {
	return &ToolError{Code: code, Message: message, Cause: cause}
}

// Errorf creates a ToolError with a formatted message.
func Errorf(code, format string, args ...any) *ToolError {
	return &ToolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// FromError wraps an arbitrary error as an internal ToolError, walking any
// existing ToolError in its Unwrap chain rather than double-wrapping it.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Code: CodeInternalError, Message: err.Error(), Cause: err}
}

// WithField returns a copy of e with key/value merged into Fields.
func (e *ToolError) WithField(key string, value any) *ToolError {
	clone := *e
	clone.Fields = make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	clone.Fields[key] = value
	return &clone
}

// WithFields merges multiple fields at once.
func (e *ToolError) WithFields(fields map[string]any) *ToolError {
	clone := *e
	clone.Fields = make(map[string]any, len(e.Fields)+len(fields))
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	for k, v := range fields {
		clone.Fields[k] = v
	}
	return &clone
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// ToJSON renders the error as the result-envelope shape spec.md section 6
// describes: {ok: false, code, message, ...fields}.
func (e *ToolError) ToJSON() map[string]any {
	out := map[string]any{
		"ok":      false,
		"code":    e.Code,
		"message": e.Message,
	}
	for k, v := range e.Fields {
		out[k] = v
	}
	return out
}
