package http

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tictactoe/internal/server/broadcast"
	"tictactoe/internal/server/core"
	"tictactoe/internal/server/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const rateLimitRate = 10 // req/sec

// Config carries the REST surface settings
type Config struct {
	AllowedOrigins string // comma separated, "*" for any
	RateLimit      int    // requests per second per client, 0 for default
	AccessLog      bool
}

// HTTPHandler serves the REST routes
type HTTPHandler struct {
	svc *service.Coordinator
	hub *broadcast.Hub
}

func NewHTTPHandler(svc *service.Coordinator, hub *broadcast.Hub) *HTTPHandler {
	return &HTTPHandler{svc: svc, hub: hub}
}

func NewFiberApp(svc *service.Coordinator, hub *broadcast.Hub, cfg Config) *fiber.App {
	h := NewHTTPHandler(svc, hub)

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          35 * time.Second, // Longer than the long-poll wait
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	origins := cfg.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	api := app.Group("/api/v1")

	maxReq := cfg.RateLimit
	if maxReq <= 0 {
		maxReq = rateLimitRate
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimit,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))

	api.Use(contentTypeValidator)

	api.Post("/rooms", openRoomValidator, h.CreateRoom)
	api.Get("/rooms/:roomId", h.GetRoom)

	return app
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrRoomNotFound
		case fiber.StatusBadRequest:
			response.Code = core.ErrInvalidPayload
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimit
		}
	}

	return c.Status(code).JSON(response)
}

// writeError maps a coordinator error to its HTTP status
func writeError(c *fiber.Ctx, err error) error {
	e := core.AsError(err)
	status := fiber.StatusInternalServerError
	switch e.Kind {
	case core.KindValidation:
		status = fiber.StatusBadRequest
	case core.KindNotFound:
		status = fiber.StatusNotFound
	case core.KindConflict:
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(core.ErrorResponse{Error: e.Message, Code: e.Code})
}

// Health check endpoint with storage status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"time":    time.Now().Unix(),
		"storage": h.svc.GetStorageHealth(),
	})
}

// CreateRoom opens a waiting room without binding any connection to it
func (h *HTTPHandler) CreateRoom(c *fiber.Ctx) error {
	req, ok := c.Locals("validatedBody").(*core.OpenRoomRequest)
	if !ok || req == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation data missing",
			Code:  core.ErrInternalError,
		})
	}

	room, err := h.svc.OpenRoom(c.UserContext(), *req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

// GetRoom returns the room snapshot. With wait=true and a known version it
// holds the request until a newer version exists or the wait times out.
func (h *HTTPHandler) GetRoom(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	if c.Query("wait", "false") != "true" {
		room, err := h.svc.Room(c.UserContext(), roomID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(room)
	}

	version, err := strconv.ParseInt(c.Query("version", "-1"), 10, 64)
	if err != nil {
		version = -1
	}

	// Register before reading so a publish between the read and the wait is not missed
	ctx, cancel := context.WithCancel(c.Context())
	defer cancel()
	notify := h.hub.RegisterWait(ctx, roomID, version)

	room, err := h.svc.Room(c.UserContext(), roomID)
	if err != nil {
		return writeError(c, err)
	}
	if room.Version > version {
		return c.JSON(room)
	}

	// Closed on a newer version, timeout or shutdown; the re-read reports whichever state is current
	<-notify
	room, err = h.svc.Room(c.UserContext(), roomID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(room)
}
