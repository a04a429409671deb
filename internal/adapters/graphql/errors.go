package graphql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/leetstat/internal/domain/model"
)

// Sentinel kinds for upstream failures.
var (
	ErrNetwork           = errors.New("upstream request failed")
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// Error describes a failed upstream call. It matches ErrNetwork or
// ErrMalformedResponse through errors.Is.
type Error struct {
	Op       string
	Kind     model.Kind
	Username string
	// Status is the HTTP status code, zero when no response arrived.
	Status int
	// Messages carries GraphQL errors[].message texts, if any.
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %q", e.Op, e.Kind, e.Username)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// IsMalformed reports whether err is an undecodable or empty response.
func IsMalformed(err error) bool { return errors.Is(err, ErrMalformedResponse) }
