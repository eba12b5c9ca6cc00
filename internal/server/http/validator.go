package http

import (
	"encoding/json"
	"fmt"
	"strings"

	"tictactoe/internal/server/core"
	"tictactoe/internal/server/service"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

// forbiddenCreateFields would let a caller seed game state on creation
var forbiddenCreateFields = []string{"board", "status", "turn", "player2_name"}

var validate = service.NewValidator()

// contentTypeValidator ensures POST requests carry JSON
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrInvalidPayload,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// openRoomValidator rejects forbidden fields, then parses and validates the create body
func openRoomValidator(c *fiber.Ctx) error {
	req := &core.OpenRoomRequest{}

	if body := c.Body(); len(body) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
				Error:   "invalid request body",
				Code:    core.ErrInvalidPayload,
				Details: err.Error(),
			})
		}

		present := lo.Filter(forbiddenCreateFields, func(name string, _ int) bool {
			_, ok := fields[name]
			return ok
		})
		if len(present) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
				Error:   "fields not allowed on create",
				Code:    core.ErrForbiddenField,
				Details: fmt.Sprintf("remove: %s", strings.Join(present, ", ")),
			})
		}

		if err := json.Unmarshal(body, req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
				Error:   "invalid request body",
				Code:    core.ErrInvalidPayload,
				Details: err.Error(),
			})
		}
	}

	if err := validate.Struct(req); err != nil {
		e := service.ValidationError(err)
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "validation failed",
			Code:    e.Code,
			Details: e.Message,
		})
	}

	c.Locals("validatedBody", req)
	return c.Next()
}
