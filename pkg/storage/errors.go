package storage

import (
	"context"
	"database/sql/driver"
	"io"
	"net"
	"syscall"

	"github.com/ajitpratap0/docgen/pkg/errors"
)

// ConflictFunc reports whether err is a unique-key violation in a backend
type ConflictFunc func(err error) bool

// Classify maps a backend error onto the error taxonomy: cancellation
// becomes a timeout, duplicate ids a conflict, transport failures a
// connection error and everything else a query error. Errors that already
// carry a type are returned unchanged.
func Classify(err error, op string, conflict ConflictFunc) error {
	if err == nil {
		return nil
	}
	if errors.TypeOf(err) != "" {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.ErrorTypeTimeout, op+" interrupted")
	case conflict != nil && conflict(err):
		return errors.Wrap(err, errors.ErrorTypeConflict, op+" rejected a duplicate id")
	case IsConnectionError(err):
		return errors.Wrap(err, errors.ErrorTypeConnection, op+" lost the connection")
	default:
		return errors.Wrap(err, errors.ErrorTypeQuery, op+" failed")
	}
}

// Unsupported is the error for an optional capability, such as count or
// search, that store does not implement
func Unsupported(store Store, op string) error {
	return errors.New(errors.ErrorTypeCapability, op+" is not supported by this storage driver").
		WithDetail("driver", store.Name())
}

// IsConnectionError reports whether err came from the transport rather than
// the statement
func IsConnectionError(err error) bool {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr):
		return true
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	default:
		return false
	}
}
