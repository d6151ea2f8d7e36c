package errors

import (
	"fmt"
	"strings"
)

// ErrorResponse is the body of error responses of the HTTP API.
//
//	{"message": {"reason": "conflict", "advice": "reload the knowl and edit again."}}
type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`

	// link to a related resource, like the latest version of a knowl.
	See string `json:"see,omitempty"`

	// logged, never sent.
	Cause error `json:"-"`
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by: ", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string {
	return e.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}
