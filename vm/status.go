package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Status: closed set of run outcomes with stable external codes
// ---------------------------------------------------------------------------

// Status identifies how a run ended. The numeric value of each Status is the
// code reported at the process boundary and must not change.
type Status int

const (
	StatusOK                    Status = 0
	StatusUnbalancedBracket     Status = -1
	StatusUnbalancedConditional Status = -2
	StatusEmptyStack            Status = -10
	StatusFullStack             Status = -13
	StatusInsufficientStack     Status = -14
	StatusBadInput              Status = -17
	StatusDivideByZero          Status = -40
	StatusMalformedEscape       Status = -50
	StatusEscapeTooLong         Status = -51
	StatusBadNumber             Status = -53
	StatusUnknownEscape         Status = -60
	StatusUnknownCommand        Status = -61
	StatusInvalidStack          Status = -70
	StatusStackInUse            Status = -71
	StatusNoFreeStack           Status = -72
	StatusBadCapacity           Status = -73
	StatusUnresolvedLabel       Status = -80
	StatusStepLimit             Status = -90
	StatusIOError               Status = -99
)

var statusNames = map[Status]string{
	StatusOK:                    "ok",
	StatusUnbalancedBracket:     "unbalanced bracket",
	StatusUnbalancedConditional: "unbalanced conditional",
	StatusEmptyStack:            "empty stack",
	StatusFullStack:             "full stack",
	StatusInsufficientStack:     "insufficient stack",
	StatusBadInput:              "bad input",
	StatusDivideByZero:          "divide by zero",
	StatusMalformedEscape:       "malformed escape",
	StatusEscapeTooLong:         "escape too long",
	StatusBadNumber:             "bad number",
	StatusUnknownEscape:         "unknown escape",
	StatusUnknownCommand:        "unknown command",
	StatusInvalidStack:          "invalid stack",
	StatusStackInUse:            "stack in use",
	StatusNoFreeStack:           "no free stack",
	StatusBadCapacity:           "bad capacity",
	StatusUnresolvedLabel:       "unresolved label",
	StatusStepLimit:             "step limit",
	StatusIOError:               "i/o error",
}

// Code returns the external numeric code.
func (s Status) Code() int {
	return int(s)
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Error is the failure returned by a run. Pos is the byte offset of the
// instruction that failed and Op the byte found there (0 when the failure
// happened before execution, e.g. during label pre-scan).
type Error struct {
	Status Status
	Pos    int
	Op     byte
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s at offset %d", e.Status, e.Pos)
	if e.Op != 0 {
		msg += fmt.Sprintf(" (%q)", e.Op)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf extracts the Status carried by err. A nil error is StatusOK and
// an error that did not come from the VM is reported as StatusIOError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Status
	}
	return StatusIOError
}

// stackStatus maps a stack bank failure onto the status reported for an
// instruction. empty is the status to use when the stack had too few
// elements, which differs between unary and binary instructions.
func stackStatus(err error, empty Status) Status {
	switch {
	case errors.Is(err, ErrStackEmpty):
		return empty
	case errors.Is(err, ErrStackFull):
		return StatusFullStack
	case errors.Is(err, ErrStackInUse):
		return StatusStackInUse
	case errors.Is(err, ErrNoFreeStack):
		return StatusNoFreeStack
	case errors.Is(err, ErrBadCapacity):
		return StatusBadCapacity
	case errors.Is(err, ErrInvalidStack):
		return StatusInvalidStack
	}
	return StatusIOError
}
