package http

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/observability"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration, exposeDetail bool) {
	app.Use(observability.RequestID())
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics, exposeDetail))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

// ErrorHandler is installed as fiber.Config.ErrorHandler for errors raised
// outside the middleware chain, such as oversized bodies.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics, exposeDetail bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return writeError(c, err, logger, metrics, exposeDetail)
	}
}

// NotFoundHandler answers requests no route matched.
func NotFoundHandler(c *fiber.Ctx) error {
	return apperrors.NewNotFound("route", map[string]any{
		"path":   c.Path(),
		"method": c.Method(),
	})
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, exposeDetail bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.String("request_id", observability.RequestIDFromContext(c)),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			if err != nil {
				err = writeError(c, err, logger, metrics, exposeDetail)
			}
		}()
		return c.Next()
	}
}

func writeError(c *fiber.Ctx, err error, logger *zap.Logger, metrics *observability.Metrics, exposeDetail bool) error {
	domainErr := apperrors.ToDomainError(err)
	route := c.Route().Path
	if route == "" || route == "/" {
		route = "unmatched"
	}
	metrics.RecordError(route, c.Method(), domainErr.Code)

	body := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	if exposeDetail && domainErr.Err != nil {
		body["detail"] = domainErr.Err.Error()
	}
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", observability.RequestIDFromContext(c)),
			zap.String("path", c.Path()),
			zap.Error(domainErr))
	}
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"success": false, "error": body})
}
