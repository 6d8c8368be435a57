package services

import (
	"errors"
	"fmt"
)

// Code classifies a rejected operation so clients can localize it.
type Code string

const (
	CodeNotHost             Code = "NOT_HOST"
	CodeRoomNotFound        Code = "ROOM_NOT_FOUND"
	CodeInvalidPhase        Code = "INVALID_PHASE"
	CodeNotReadyAll         Code = "NOT_READY_ALL"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeTurnNotActive       Code = "TURN_NOT_ACTIVE"
	CodeWaitingPlayers      Code = "WAITING_PLAYERS"
	CodeAlreadyResponded    Code = "ALREADY_RESPONDED"
	CodeInvalidMark         Code = "INVALID_MARK"
	CodeHaveNumber          Code = "CANNOT_NO_NUMBER_HAVE_NUMBER"
	CodeInvalidBingoClaim   Code = "INVALID_BINGO_CLAIM"
	CodeRequestNotFound     Code = "REQUEST_NOT_FOUND"
	CodePlayerNotFound      Code = "PLAYER_NOT_FOUND"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeTooFast             Code = "TOO_FAST"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Error is the coded failure every session operation returns instead of
// panicking or throwing.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// E builds a coded error.
func E(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, mapping unknown errors to
// INTERNAL_ERROR.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
