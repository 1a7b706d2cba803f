package acquire

import (
	"errors"
	"fmt"

	"github.com/desertthunder/nexus/internal/shared"
)

// Kind separates failures whose remediation differs.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindResolveFailed
	KindCredentialsRejected
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindResolveFailed:
		return "resolve_failed"
	case KindCredentialsRejected:
		return "credentials_rejected"
	case KindExhausted:
		return "acquisition_failed"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return shared.ErrInvalidInput
	case KindResolveFailed:
		return shared.ErrResolveFailed
	case KindCredentialsRejected:
		return shared.ErrCredentialsRejected
	default:
		return shared.ErrAcquisitionFailed
	}
}

// Error is the terminal failure of a resolve or acquire call.
//
// Attempts and Profile describe the last download attempt and are zero for resolve and input failures.
type Error struct {
	Kind     Kind
	Attempts int
	Profile  string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindCredentialsRejected:
		return fmt.Sprintf("%v on attempt %d (profile %s): %v", e.Kind.sentinel(), e.Attempts, e.Profile, e.Err)
	case KindExhausted:
		return fmt.Sprintf("%v after %d attempts (last profile %s): %v", e.Kind.sentinel(), e.Attempts, e.Profile, e.Err)
	default:
		return fmt.Sprintf("%v: %v", e.Kind.sentinel(), e.Err)
	}
}

// Unwrap exposes both the kind's sentinel and the underlying cause to [errors.Is].
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// Hint is user-facing remediation text for the failure.
func (e *Error) Hint() string {
	switch e.Kind {
	case KindInvalidInput:
		return "The request was invalid. Check the search text or link and try again."
	case KindResolveFailed:
		return "The search service did not answer properly. Try again in a moment."
	case KindCredentialsRejected:
		return "The source rejected the configured session cookies. The operator needs to export fresh cookies and restart the service."
	default:
		return "The source is blocking automated downloads right now. Try again later."
	}
}

// KindOf extracts the [Kind] of an acquisition error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// HintFor returns the remediation text of an acquisition error, or "".
func HintFor(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint()
	}
	return ""
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Err: fmt.Errorf(format, args...)}
}

// AttemptsOf returns the number of download attempts recorded on an acquisition error.
func AttemptsOf(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Attempts > 0 {
		return e.Attempts, true
	}
	return 0, false
}
