package source

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNetworkUnavailable   = errors.New("network unavailable")
	ErrCalendarNotFound     = errors.New("calendar not found")
	ErrProtocol             = errors.New("protocol error")
)

// FetchError carries one of the Err* kinds plus the underlying cause.
// errors.Is matches both the kind and the cause.
type FetchError struct {
	Kind     error
	Calendar string
	Err      error
}

func (e *FetchError) Error() string {
	msg := e.Kind.Error()
	if e.Calendar != "" {
		msg += " (calendar " + e.Calendar + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == e.Kind
}

// StaleError accompanies records that came from a previously downloaded
// copy because the live fetch failed. The records are usable; Err is the
// failure behind them.
type StaleError struct {
	Err error
}

func (e *StaleError) Error() string {
	return "serving cached copy: " + e.Err.Error()
}

func (e *StaleError) Unwrap() error {
	return e.Err
}

// IsStale reports whether err only marks the returned records as stale.
func IsStale(err error) bool {
	var se *StaleError
	return errors.As(err, &se)
}

// NewFetchError wraps err with kind. An err that already is a *FetchError is returned as-is.
func NewFetchError(kind error, calendar string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Kind: kind, Calendar: calendar, Err: err}
}

// Classify maps an HTTP status code and/or transport error to a kind.
// status is 0 when no response was received.
func Classify(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthenticationFailed
	case status == http.StatusNotFound || status == http.StatusGone:
		return ErrCalendarNotFound
	case status >= 400:
		return ErrProtocol
	}
	if err == nil {
		return ErrProtocol
	}

	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr),
		errors.As(err, &urlErr):
		return ErrNetworkUnavailable
	}
	return ErrProtocol
}

// KindOf returns the kind of a fetch error, or ErrProtocol for anything else.
func KindOf(err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrProtocol
}

// KindName is a short label for log fields.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrAuthenticationFailed:
		return "authentication_failed"
	case ErrNetworkUnavailable:
		return "network_unavailable"
	case ErrCalendarNotFound:
		return "calendar_not_found"
	default:
		return "protocol_error"
	}
}
