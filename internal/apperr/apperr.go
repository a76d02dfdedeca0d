// Package apperr defines the closed set of failures the chat client reports to the user, each paired with a
// remediation hint.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies which stage failed and how
type Kind int

const (
	KindProfileNotFound Kind = iota + 1
	KindExpiredSession
	KindClientConfiguration
	KindModelAccessDenied
	KindModelInitialization
	KindUnexpectedSetup
	KindChatInvocation
)

func (k Kind) String() string {
	switch k {
	case KindProfileNotFound:
		return "ProfileNotFoundError"
	case KindExpiredSession:
		return "ExpiredSessionError"
	case KindClientConfiguration:
		return "ClientConfigurationError"
	case KindModelAccessDenied:
		return "ModelAccessDeniedError"
	case KindModelInitialization:
		return "ModelInitializationError"
	case KindUnexpectedSetup:
		return "UnexpectedSetupError"
	case KindChatInvocation:
		return "ChatInvocationError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Fixed remediation hints. The profile hint is a format string taking the profile name.
const (
	HintProfileNotFound     = "Profile '%s' not found. Check ~/.aws/config or run 'aws configure sso'"
	HintExpiredSession      = "AWS SSO session expired. Run 'aws sso login' to refresh it."
	HintClientConfiguration = "Client error occurred. Check credentials and permissions."
	HintUnexpectedSetup     = "Unexpected error. Verify AWS setup and permissions."
	HintModelAccessDenied   = "Check if you have access to Claude 3 Haiku in AWS Bedrock"
	HintModelInitialization = "Failed to initialize Bedrock LLM model. Check model name and client."
	HintChatInvocation      = "The model call failed. Check your network connection and Bedrock quotas."
)

// Error is a classified failure. Err is the underlying cause and is never nil.
type Error struct {
	Kind Kind
	Hint string
	Err  error
}

func New(kind Kind, hint string, err error) *Error {
	if err == nil {
		err = errors.New(kind.String())
	}
	return &Error{Kind: kind, Hint: hint, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// Is reports whether err's chain contains a classified error of the given kind
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
