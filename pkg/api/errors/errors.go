package errors

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/lmfdb/lmfdb/pkg/api/types/errors"
	kerr "github.com/lmfdb/lmfdb/pkg/domain/errors"
)

type ErrorMessageOption func(in *apierr.ErrorMessage) *apierr.ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(in *apierr.ErrorMessage) *apierr.ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *apierr.ErrorMessage) *apierr.ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func WithSee(see string) ErrorMessageOption {
	return func(in *apierr.ErrorMessage) *apierr.ErrorMessage {
		if see != "" {
			in.See = see
		}
		return in
	}
}

func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := apierr.ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}

	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func NotFound(options ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, "not found", options...)
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusBadRequest,
		"bad request",
		WithAdvice(advice),
		WithError(err),
	)
}

func Conflict(message string, options ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusConflict,
		message,
		options...,
	)
}

func Gone(advice string) *echo.HTTPError {
	return NewErrorMessage(http.StatusGone, "gone", WithAdvice(advice))
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusInternalServerError,
		"unexpected error",
		WithError(err),
	)
}

func Unauthorized(message string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusUnauthorized,
		message,
		WithAdvice("set a valid editor token to Authorization header, as 'Bearer <token>'."),
		WithError(err),
	)
}

func ServiceUnavailable(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusServiceUnavailable,
		"service unavailable temporaly",
		WithAdvice(advice),
		WithError(err),
	)
}

// FromDomain translates errors of domain operations into HTTP errors.
//
//   - ErrMissing: 404
//   - ErrInvalidKnowlId, ErrInvalidRecord: 400
//   - ErrConflict (incl. version mismatches and field collisions): 409
//   - others: 500
func FromDomain(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	if he := new(echo.HTTPError); errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, kerr.ErrMissing):
		return NotFound(WithError(err))
	case errors.Is(err, kerr.ErrInvalidKnowlId):
		return BadRequest("knowl id should be lowercase dotted words, like 'ec.q.torsion_order'.", err)
	case errors.Is(err, kerr.ErrInvalidRecord):
		return BadRequest("", err)
	case errors.Is(err, kerr.ErrConflict):
		return Conflict(
			err.Error(),
			WithAdvice("reload the latest version and retry."),
			WithError(err),
		)
	}
	return InternalServerError(err)
}
