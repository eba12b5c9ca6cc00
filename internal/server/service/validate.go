package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"tictactoe/internal/server/core"
	"tictactoe/internal/server/game"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that understands the roomid and playername tags
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("roomid", func(fl validator.FieldLevel) bool {
		return game.IsValidRoomID(fl.Field().String())
	})
	v.RegisterValidation("playername", func(fl validator.FieldLevel) bool {
		return game.IsValidName(game.SanitizeName(fl.Field().String()))
	})
	return v
}

// fieldCodes maps a struct field to the error code reported when it fails
var fieldCodes = map[string]string{
	"RoomID":      core.ErrInvalidRoomID,
	"PlayerName":  core.ErrInvalidName,
	"Player1Name": core.ErrInvalidName,
	"Index":       core.ErrInvalidIndex,
}

// ValidationError converts a validator failure into a coded validation error.
// The first failing field decides the code.
func ValidationError(err error) *core.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return core.NewValidationError(core.ErrInvalidPayload, "invalid payload")
	}

	var details strings.Builder
	for _, fe := range errs {
		if details.Len() > 0 {
			details.WriteString("; ")
		}
		switch fe.Tag() {
		case "required":
			details.WriteString(fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			if fe.Type().Kind() == reflect.String {
				details.WriteString(fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
			} else {
				details.WriteString(fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
			}
		case "max":
			if fe.Type().Kind() == reflect.String {
				details.WriteString(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
			} else {
				details.WriteString(fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
			}
		case "roomid":
			details.WriteString(fmt.Sprintf("%s must be 4-32 characters of letters, digits, _ or -", fe.Field()))
		case "playername":
			details.WriteString(fmt.Sprintf("%s must be 1-%d letters, digits, spaces, _ or -", fe.Field(), game.MaxNameLength))
		default:
			details.WriteString(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}

	code, ok := fieldCodes[errs[0].StructField()]
	if !ok {
		code = core.ErrInvalidPayload
	}
	return core.NewValidationError(code, details.String())
}
