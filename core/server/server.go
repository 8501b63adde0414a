package server

import (
	"errors"
	"time"

	"channel-publisher/core/logger"
	"channel-publisher/core/middleware/auth"
	"channel-publisher/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

// New creates the Fiber app with the shared middleware stack: ray ids,
// request logging, public swagger docs, then API-key auth for everything
// registered afterwards.
func New(cfg Config, logg *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // We log our own startup message
		ReadTimeout:           cfg.ReadTimeout,
		ErrorHandler:          errorHandler(logg),
	})

	// RayID must be first to trace everything
	app.Use(rayid.New())

	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		start := time.Now()
		err := c.Next()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			l.Error("Request error", append(fields, zap.Error(err))...)
		} else {
			l.Info("Request handled", fields...)
		}
		return err
	})

	app.Get("/swagger/*", swagger.HandlerDefault)

	if cfg.ApiKey == "" {
		logg.Warn("Server.api_key is empty, API authentication is disabled")
	}
	app.Use(auth.New(auth.Config{ApiKey: cfg.ApiKey}))

	return app
}

func errorHandler(logg *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.WithRayID(logg, c).Error("Unhandled error", zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
