package services

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-readable category of a booking failure
type ErrorKind string

const (
	KindStationNotOnRoute     ErrorKind = "STATION_NOT_ON_ROUTE"
	KindInvalidSegment        ErrorKind = "INVALID_SEGMENT"
	KindRouteInvalid          ErrorKind = "ROUTE_INVALID"
	KindRunNotFound           ErrorKind = "RUN_NOT_FOUND"
	KindVehicleNotFound       ErrorKind = "VEHICLE_NOT_FOUND"
	KindSoldOut               ErrorKind = "SOLD_OUT"
	KindAllocationFailed      ErrorKind = "ALLOCATION_FAILED"
	KindFareNotFound          ErrorKind = "FARE_NOT_FOUND"
	KindIntegrityViolation    ErrorKind = "INTEGRITY_VIOLATION"
	KindOrderNotFound         ErrorKind = "ORDER_NOT_FOUND"
	KindSeatNoLongerAvailable ErrorKind = "SEAT_NO_LONGER_AVAILABLE"
	KindInvalidTransition     ErrorKind = "INVALID_TRANSITION"
)

// BookingError is a typed failure of a booking, cancel or restore.
// Two BookingErrors match under errors.Is when their kinds are equal.
type BookingError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrStationNotOnRoute     = &BookingError{Kind: KindStationNotOnRoute, Message: "station is not on the vehicle's route"}
	ErrInvalidSegment        = &BookingError{Kind: KindInvalidSegment, Message: "departure station must come before arrival station"}
	ErrRouteInvalid          = &BookingError{Kind: KindRouteInvalid, Message: "route cannot be resolved"}
	ErrRunNotFound           = &BookingError{Kind: KindRunNotFound, Message: "run not found"}
	ErrVehicleNotFound       = &BookingError{Kind: KindVehicleNotFound, Message: "vehicle not found"}
	ErrSoldOut               = &BookingError{Kind: KindSoldOut, Message: "no seats left for this segment"}
	ErrAllocationFailed      = &BookingError{Kind: KindAllocationFailed, Message: "no free seat could be assigned, please retry"}
	ErrFareNotFound          = &BookingError{Kind: KindFareNotFound, Message: "no fare for this segment and seat class"}
	ErrIntegrityViolation    = &BookingError{Kind: KindIntegrityViolation, Message: "seat allocation integrity check failed"}
	ErrOrderNotFound         = &BookingError{Kind: KindOrderNotFound, Message: "order not found"}
	ErrSeatNoLongerAvailable = &BookingError{Kind: KindSeatNoLongerAvailable, Message: "seat is no longer available for this segment"}
	ErrInvalidTransition     = &BookingError{Kind: KindInvalidTransition, Message: "order status change not allowed"}
)

// newError builds a BookingError of kind with a formatted message
func newError(kind ErrorKind, format string, args ...any) *BookingError {
	return &BookingError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapError builds a BookingError of kind around a cause, keeping the cause's message
func wrapError(kind ErrorKind, cause error) *BookingError {
	return &BookingError{Kind: kind, Message: cause.Error(), Err: cause}
}

// KindOf returns the kind of the outermost BookingError in err's chain, or "" when there is none
func KindOf(err error) ErrorKind {
	var be *BookingError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
