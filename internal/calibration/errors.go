package calibration

import "fmt"

// Code identifies a calibration failure.
type Code int

const (
	CodeMultipleBeacons Code = 1
	CodeCancelled       Code = 2
	CodeNoBeacon        Code = 3
	CodeInProgress      Code = 4
	CodeScanUnavailable Code = 5
	CodeClosed          Code = 6
)

// Error is the terminal failure of a calibration run.
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }

var (
	ErrMultipleBeacons   = &Error{CodeMultipleBeacons, "more than one beacon of the specified type was found"}
	ErrCancelled         = &Error{CodeCancelled, "calibration was cancelled"}
	ErrNoBeacon          = &Error{CodeNoBeacon, "no beacon of the specified type was found"}
	ErrAlreadyInProgress = &Error{CodeInProgress, "calibration is already in progress"}
	ErrScanUnavailable   = &Error{CodeScanUnavailable, "beacon scanning could not be started"}
	ErrClosed            = &Error{CodeClosed, "calibrator is closed"}
)

// scanError keeps the scanner's cause next to ErrScanUnavailable.
type scanError struct {
	cause error
}

func (e *scanError) Error() string {
	return fmt.Sprintf("%s: %v", ErrScanUnavailable.msg, e.cause)
}

func (e *scanError) Is(target error) bool { return target == ErrScanUnavailable }

func (e *scanError) Unwrap() error { return e.cause }
