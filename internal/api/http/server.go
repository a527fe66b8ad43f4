package httpapi

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// AppOptions configures NewApp.
type AppOptions struct {
	Name        string
	CORSOrigins []string
	Logger      *slog.Logger
	// AccessLog enables the per-request access log middleware.
	AccessLog bool
}

// NewApp builds the Fiber app with the central error handler and the global
// middleware. Routes are added by RegisterRoutes.
func NewApp(opts AppOptions) *fiber.App {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               opts.Name,
		DisableStartupMessage: true,
		UnescapePath:          true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error("request failed",
					"request_id", c.Locals("requestid"),
					"method", c.Method(),
					"path", c.Path(),
					"error", err,
				)
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(recover.New())

	if len(opts.CORSOrigins) > 0 {
		origins := strings.Join(opts.CORSOrigins, ",")
		app.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     "GET,HEAD,OPTIONS",
			AllowCredentials: origins != "*",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": opts.Name,
		})
	})

	return app
}
