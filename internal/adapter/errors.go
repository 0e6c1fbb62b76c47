package adapter

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized radio errors.
var (
	ErrBusy        = errors.New("BUSY")
	ErrUnavailable = errors.New("UNAVAILABLE")
	ErrTimeout     = errors.New("TIMEOUT")
	ErrNotFound    = errors.New("NOT_FOUND")
	ErrInternal    = errors.New("INTERNAL")
)

// DriverMap lists the error tokens a driver emits for each normalized code.
type DriverMap struct {
	Busy        []string
	Unavailable []string
	Timeout     []string
	NotFound    []string
}

// DriverErrorMappings holds the token tables per driver. Matching is a
// case-insensitive substring test; categories are checked in the order
// timeout, busy, not-found, unavailable. A driver table is consulted before
// the generic one, and anything unmatched maps to INTERNAL.
var DriverErrorMappings = map[string]DriverMap{
	"bluez": {
		Busy: []string{
			"org.bluez.Error.InProgress",
			"org.bluez.Error.Busy",
			"operation already in progress",
		},
		Unavailable: []string{
			"org.bluez.Error.NotReady",
			"org.bluez.Error.NotConnected",
			"org.bluez.Error.Failed",
			"le-connection-abort-by-local",
			"software caused connection abort",
			"host is down",
			"not powered",
		},
		Timeout: []string{
			"org.freedesktop.DBus.Error.NoReply",
			"timeout",
			"timed out",
			"deadline exceeded",
		},
		NotFound: []string{
			"org.bluez.Error.DoesNotExist",
			"org.freedesktop.DBus.Error.UnknownObject",
			"service not found",
			"characteristic not found",
		},
	},
	"generic": {
		Busy: []string{
			"busy",
			"in progress",
			"too many connections",
		},
		Unavailable: []string{
			"unavailable",
			"not connected",
			"disconnected",
			"canceled",
			"powered off",
		},
		Timeout: []string{
			"timeout",
			"timed out",
			"deadline exceeded",
		},
		NotFound: []string{
			"not found",
			"no such",
		},
	},
}

// RadioError wraps a driver failure with the operation, the unit and the
// normalized code.
type RadioError struct {
	Op       string
	Address  string
	Code     error
	Original error
}

func (e *RadioError) Error() string {
	return fmt.Sprintf("%s %s: %v (driver: %v)", e.Op, e.Address, e.Code, e.Original)
}

func (e *RadioError) Unwrap() []error {
	return []error{e.Code, e.Original}
}

// NormalizeDriverError maps a driver error using the generic table.
func NormalizeDriverError(op, address string, err error) error {
	return NormalizeDriverErrorWithDriver(op, address, err, "generic")
}

// NormalizeDriverErrorWithDriver maps a driver error using a specific table.
// Errors that are already normalized are returned unchanged.
func NormalizeDriverErrorWithDriver(op, address string, err error, driverID string) error {
	if err == nil {
		return nil
	}

	var radioErr *RadioError
	if errors.As(err, &radioErr) {
		return err
	}

	return &RadioError{
		Op:       op,
		Address:  address,
		Code:     mapDriverErrorToCode(err.Error(), driverID),
		Original: err,
	}
}

// Code returns the normalized code of err, or ErrInternal.
func Code(err error) error {
	for _, code := range []error{ErrBusy, ErrUnavailable, ErrTimeout, ErrNotFound, ErrInternal} {
		if errors.Is(err, code) {
			return code
		}
	}
	return ErrInternal
}

func mapDriverErrorToCode(msg, driverID string) error {
	if driverMap, exists := DriverErrorMappings[driverID]; exists && driverID != "generic" {
		if code := matchTokens(strings.ToLower(msg), driverMap); code != nil {
			return code
		}
	}
	if code := matchTokens(strings.ToLower(msg), DriverErrorMappings["generic"]); code != nil {
		return code
	}
	return ErrInternal
}

func matchTokens(lower string, driverMap DriverMap) error {
	categories := []struct {
		tokens []string
		code   error
	}{
		{driverMap.Timeout, ErrTimeout},
		{driverMap.Busy, ErrBusy},
		{driverMap.NotFound, ErrNotFound},
		{driverMap.Unavailable, ErrUnavailable},
	}
	for _, category := range categories {
		for _, token := range category.tokens {
			if strings.Contains(lower, strings.ToLower(token)) {
				return category.code
			}
		}
	}
	return nil
}
