package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorPaymentRequired ErrorCode = "PAYMENT_REQUIRED"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

const (
	MessageRateLimited     = "Rate limit exceeded. Please try again later."
	MessagePaymentRequired = "Service credits exhausted. Please add funds."
	MessageUpstream        = "Failed to get AI response"
	MessageNotConfigured   = "AI API key is not configured"
)

const reasonNotConfigured = "llm_not_configured"

var invalidInputMessages = map[string]string{
	"no_messages":       "At least one message is required.",
	"too_many_messages": "Too many messages in one request.",
	"invalid_role":      "Messages must come from the user or the assistant.",
	"empty_content":     "Messages must not be empty.",
	"invalid_content":   "Message content is not valid.",
}

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the text safe to show to the caller.
func (e *Error) UserMessage() string {
	if e == nil {
		return ""
	}
	switch e.Code {
	case ErrorInvalidInput:
		if msg, ok := invalidInputMessages[e.Reason]; ok {
			return msg
		}
		return "Invalid request."
	case ErrorRateLimited:
		return MessageRateLimited
	case ErrorPaymentRequired:
		return MessagePaymentRequired
	case ErrorInternal:
		if e.Reason == reasonNotConfigured {
			return MessageNotConfigured
		}
		return MessageUpstream
	default:
		return MessageUpstream
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
