package core

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrInvalidRoomID  = "INVALID_ROOM_ID"
	ErrInvalidName    = "INVALID_NAME"
	ErrInvalidIndex   = "INVALID_INDEX"
	ErrInvalidPayload = "INVALID_PAYLOAD"
	ErrUnknownEvent   = "UNKNOWN_EVENT"
	ErrForbiddenField = "FORBIDDEN_FIELD"
	ErrRoomNotFound   = "ROOM_NOT_FOUND"
	ErrRoomFull       = "ROOM_FULL"
	ErrJoinFailed     = "JOIN_FAILED"
	ErrNameMismatch   = "NAME_MISMATCH"
	ErrNotInRoom      = "NOT_IN_ROOM"
	ErrGameNotActive  = "GAME_NOT_ACTIVE"
	ErrNotYourTurn    = "NOT_YOUR_TURN"
	ErrCellOccupied   = "CELL_OCCUPIED"
	ErrMoveRejected   = "MOVE_REJECTED"
	ErrRoomNotReady   = "ROOM_NOT_READY"
	ErrRoomIDTaken    = "ROOM_ID_TAKEN"
	ErrCreateFailed   = "CREATE_FAILED"
	ErrRateLimit      = "RATE_LIMIT"
	ErrInternalError  = "INTERNAL_ERROR"
)

// ErrorKind groups error codes by how a caller should react to them
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindConflict
	KindNotFound
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a user-facing rejection carrying a machine-readable code.
// Details holds the context a client needs to react (expected turn, current status...).
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// With returns a copy of e carrying an extra detail entry
func (e *Error) With(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Details: details}
}

func NewValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NewConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func NewNotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// NewInternalError hides the cause from the caller; callers log it before returning
func NewInternalError() *Error {
	return &Error{Kind: KindInternal, Code: ErrInternalError, Message: "internal error"}
}

// AsError extracts a *Error from err, mapping anything else to a generic internal error
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternalError()
}

// ErrorResponse is the body of REST error responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
