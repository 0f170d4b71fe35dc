package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorType int

const (
	// Acquisition means subtitles for a video could not be obtained.
	Acquisition ErrorType = iota
	// Stage means one production stage (translate, polish, synthesize) failed for a segment.
	Stage
	Validation
	Config
	Network
	API
	// Resource means an audio handle could not be prepared or released.
	Resource
	Unknown
)

func (t ErrorType) String() string {
	switch t {
	case Acquisition:
		return "Acquisition"
	case Stage:
		return "Stage"
	case Validation:
		return "Validation"
	case Config:
		return "Config"
	case Network:
		return "Network"
	case API:
		return "API"
	case Resource:
		return "Resource"
	default:
		return "Unknown"
	}
}

type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func New(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(errorType ErrorType, format string, args ...any) *Error {
	return New(errorType, fmt.Sprintf(format, args...))
}

func Wrap(err error, errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   err,
	}
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Type, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// Advice returns an operator-facing hint for the error type.
func (e *Error) Advice() string {
	switch e.Type {
	case Acquisition:
		return "Check that the video has manual or automatic subtitles and that the backend can reach the video host"
	case Stage:
		return "The segment will retry automatically; persistent failures usually mean the translate or TTS provider is unreachable"
	case Validation:
		return "Check the request parameters; a YouTube watch, embed or youtu.be link is required"
	case Config:
		return "Check environment variables and the runtime settings file"
	case Network:
		return "Check network connectivity to the backend and provider endpoints"
	case API:
		return "Check API keys and provider quotas"
	case Resource:
		return "Audio resources are released on a best-effort basis; this is safe to ignore"
	default:
		return "Review the detailed error and the service logs"
	}
}

// IsType reports whether any error in err's chain is an *Error of the given type.
func IsType(err error, errorType ErrorType) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// TypeOf returns the type of the first *Error in err's chain, or Unknown.
func TypeOf(err error) ErrorType {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return Unknown
}
