package authapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-flow/internal/errors"
)

// Kind categorises a remote failure
type Kind int

const (
	KindTransport Kind = iota
	KindUnauthorized
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRejected:
		return "rejected"
	default:
		return "transport"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthorized:
		return apperrors.ErrUnauthorized
	case KindRejected:
		return apperrors.ErrRejected
	default:
		return apperrors.ErrTransport
	}
}

// GenericFailureMessage is shown for transport and server failures
const GenericFailureMessage = "Something went wrong. Please try again."

// APIError is a categorised failure from one API operation.
// It unwraps to the matching sentinel in internal/errors and to the underlying cause.
type APIError struct {
	Op      string // endpoint path, e.g. "auth/login-otp"
	Status  int    // HTTP status, 0 for transport failures
	Kind    Kind
	Message string // server supplied message, verbatim
	Err     error  // underlying cause for transport failures
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}

// UserMessage is what a user should see: the server's words for rejections, a generic line otherwise.
func (e *APIError) UserMessage() string {
	if e.Kind != KindTransport && e.Message != "" {
		return e.Message
	}
	if e.Kind == KindUnauthorized {
		return "Your session has expired. Please sign in again."
	}
	return GenericFailureMessage
}

// UserMessage extracts a user facing message from any error returned by this package
func UserMessage(err error) string {
	var apiErr *APIError
	if apperrors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return GenericFailureMessage
}

// errorBody matches {"message": "..."} and the {"message": ["...", "..."]} shape used for validation failures
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

func parseMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if len(eb.Message) > 0 {
		var single string
		if err := json.Unmarshal(eb.Message, &single); err == nil {
			return single
		}
		var many []string
		if err := json.Unmarshal(eb.Message, &many); err == nil {
			return strings.Join(many, "; ")
		}
	}
	return eb.Error
}

func classify(op string, status int, body []byte) *APIError {
	e := &APIError{Op: op, Status: status, Message: parseMessage(body)}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status >= 400 && status < 500:
		e.Kind = KindRejected
	default:
		e.Kind = KindTransport
	}
	return e
}
