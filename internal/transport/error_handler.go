package transport

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"go.uber.org/zap"
)

// ErrorHandler renders {"error", "code"} with a status derived from the error taxonomy.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code, errorCode := StatusFor(err)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.String("code", errorCode),
			zap.Error(err),
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("request error", fields...)
		} else {
			logger.Warn("request rejected", fields...)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
			"code":  errorCode,
		})
	}
}

// StatusFor maps err to an HTTP status and a stable error code.
func StatusFor(err error) (int, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, strings.ToUpper(strings.ReplaceAll(utils.StatusMessage(fiberErr.Code), " ", "_"))
	}

	errorCode := domain.ErrorCode(err)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusForbidden, errorCode
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, errorCode
	case domain.IsClientError(err):
		return fiber.StatusBadRequest, errorCode
	}
	return fiber.StatusInternalServerError, errorCode
}
