package domain

import (
	"errors"
	"fmt"
)

// IllegalTransitionError is returned when a command is not allowed in the current trip phase.
type IllegalTransitionError struct {
	From      TripPhase
	Attempted Action
}

func (e IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s not allowed from %s", e.Attempted, e.From)
}

// ScannerBusyError means a scan session is already open on the (single) scanner.
type ScannerBusyError struct {
	SessionID string
}

func (e ScannerBusyError) Error() string {
	if e.SessionID == "" {
		return "scanner busy"
	}
	return fmt.Sprintf("scanner busy: session %s still open", e.SessionID)
}

type CapacityExceededError struct {
	Requested int
	Free      int
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: requested %d, free %d", e.Requested, e.Free)
}

// StaleSessionError marks a scan result or decision for a session that is no longer active.
// Callers discard it; it is never shown to the operator.
type StaleSessionError struct {
	SessionID string
}

func (e StaleSessionError) Error() string {
	return fmt.Sprintf("stale scan session %s", e.SessionID)
}

type NotFoundError struct {
	Resource string
	ID       any
	Err      error
}

func (e NotFoundError) Error() string {
	switch {
	case e.Resource == "":
		return "not found"
	case e.ID == nil:
		return fmt.Sprintf("%s not found", e.Resource)
	default:
		return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
	}
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsIllegalTransition(err error) bool {
	var target IllegalTransitionError
	return errors.As(err, &target)
}

func IsScannerBusy(err error) bool {
	var target ScannerBusyError
	return errors.As(err, &target)
}

func IsCapacityExceeded(err error) bool {
	var target CapacityExceededError
	return errors.As(err, &target)
}

func IsStaleSession(err error) bool {
	var target StaleSessionError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}
