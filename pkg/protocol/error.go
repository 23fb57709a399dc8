package protocol

import (
	"errors"
	"fmt"
)

// Error exposes methods useful for categorizing errors.
type Error interface {
	error

	// MayHaveSucceeded returns true if the Error was triggered by a request that the password
	// manager might have acted on. For example, if a client times out while waiting for the relay,
	// it cannot tell whether a save request was applied.
	MayHaveSucceeded() bool

	// Temporary returns true if the Error might be the result of a transient condition, such as the
	// relay daemon not running yet.
	Temporary() bool
}

// ErrorKind groups errors by the layer that produced them.
type ErrorKind int

const (
	KindUnknown     ErrorKind = iota
	KindTransport             // Socket failures and timeouts between the CLI and the relay.
	KindProtocol              // Malformed or unexpected messages from the password manager.
	KindCrypto                // Envelope or key-agreement failures.
	KindState                 // Missing or unusable session record.
	KindUnavailable           // The password manager host could not be located or started.
)

var kindNames = map[ErrorKind]string{
	KindUnknown:     "unknown",
	KindTransport:   "transport",
	KindProtocol:    "protocol",
	KindCrypto:      "crypto",
	KindState:       "state",
	KindUnavailable: "unavailable",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var (
	// ErrForeignSession indicates a handshake reply carried a different identity token than the one
	// this client generated.
	ErrForeignSession = NewError(KindProtocol, "invalid server hello: destined to another session", false, false)
	// ErrUnexpectedMessage indicates a handshake reply had the wrong MSG type for the current step.
	ErrUnexpectedMessage = NewError(KindProtocol, "invalid server hello: unexpected message type", false, false)
	// ErrUnsupportedProtocol indicates the password manager did not select SRP with RFC 5054
	// verification.
	ErrUnsupportedProtocol = NewError(KindProtocol, "invalid server hello: unsupported protocol", false, false)
	ErrUnsupportedVersion  = NewError(KindProtocol, "invalid server hello: unsupported version", false, false)
	// ErrTimeout indicates no reply arrived within the configured wait. The relay may still have
	// delivered the request.
	ErrTimeout         = NewError(KindTransport, "timed out waiting for response from relay", true, true)
	ErrNotConnected    = NewError(KindTransport, "relay daemon not reachable", false, true)
	ErrBadResponse     = NewError(KindProtocol, "invalid response", false, false)
	ErrHostUnavailable = NewError(KindUnavailable, "password manager host unavailable", false, false)
)

type CommandError struct {
	Err               error
	Kind              ErrorKind
	PossibleSuccess   bool
	PossibleTemporary bool
}

func NewError(kind ErrorKind, message string, mayHaveSucceeded bool, temporary bool) error {
	return &CommandError{Err: errors.New(message), Kind: kind, PossibleSuccess: mayHaveSucceeded, PossibleTemporary: temporary}
}

func (e *CommandError) Error() string {
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) MayHaveSucceeded() bool {
	return e.PossibleSuccess
}

func (e *CommandError) Temporary() bool {
	return e.PossibleTemporary
}

func (e *CommandError) ErrorKind() ErrorKind {
	return e.Kind
}

// ServerError carries a positive ErrCode reported by the password manager during the handshake.
type ServerError struct {
	Code int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("invalid server hello: error code: %d", e.Code)
}

func (e *ServerError) MayHaveSucceeded() bool {
	return false
}

func (e *ServerError) Temporary() bool {
	return false
}

func (e *ServerError) ErrorKind() ErrorKind {
	return KindProtocol
}

// MayHaveSucceeded returns true if err is an Error that indicates the request may have been
// executed but the client did not receive a confirmation.
func MayHaveSucceeded(err error) bool {
	var commErr Error
	if errors.As(err, &commErr) && commErr.MayHaveSucceeded() {
		return true
	}
	return false
}

// Temporary returns true if err is an Error that indicates the request failed due to possibly
// transient conditions.
func Temporary(err error) bool {
	var commErr Error
	if errors.As(err, &commErr) && commErr.Temporary() {
		return true
	}
	return false
}

// KindOf returns the ErrorKind of the first error in err's chain that carries one.
func KindOf(err error) ErrorKind {
	var kinded interface{ ErrorKind() ErrorKind }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	return KindUnknown
}
