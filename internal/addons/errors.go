package addons

import "errors"

var (
	// ErrForbidden is returned when the caller lacks administrative privilege.
	ErrForbidden = errors.New("addons: caller is not an administrator")
	// ErrInvalidToken is returned when the anti-forgery token does not validate.
	ErrInvalidToken = errors.New("addons: invalid anti-forgery token")
	// ErrUnsupportedAction is returned for verbs the manager does not know.
	ErrUnsupportedAction = errors.New("addons: unsupported action")
)

// Messages shown on the blocking error page for fatal failures.
const (
	ForbiddenMessage    = "You do not have permission to manage add-ons."
	InvalidTokenMessage = "The link you followed has expired."
)

// HostError is a failure reported by a host primitive. Its message is shown
// to the operator as-is.
type HostError struct {
	Code    string
	Message string
	Cause   error
}

// NewHostError builds a HostError with a machine code and an operator message.
func NewHostError(code, message string) *HostError {
	return &HostError{Code: code, Message: message}
}

func (e *HostError) Error() string {
	return e.Message
}

func (e *HostError) Unwrap() error {
	return e.Cause
}

// Wrap attaches the underlying cause and returns the receiver.
func (e *HostError) Wrap(cause error) *HostError {
	e.Cause = cause
	return e
}
