package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/etxebila/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, geometry_parse, index_query, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errDomain maps a domain error onto its status and error kind.
func errDomain(c *fiber.Ctx, err error) error {
	kind := domain.ErrorKind(err)
	if kind == "internal" {
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
	return newError(c, statusForKind(kind), kind, err.Error())
}

// statusForKind is the HTTP status reported for an error kind carried on a
// result page or snapshot. Empty kind means success.
func statusForKind(kind string) int {
	switch kind {
	case "":
		return fiber.StatusOK
	case "not_found":
		return fiber.StatusNotFound
	case "geometry_parse", "insufficient_points", "oversize_geometry":
		return fiber.StatusUnprocessableEntity
	case "index_query":
		return fiber.StatusBadGateway
	case "index_connectivity":
		return fiber.StatusServiceUnavailable
	case "timeout":
		return fiber.StatusGatewayTimeout
	case "canceled", "superseded":
		// client went away; status is only seen by the access log
		return 499
	default:
		return fiber.StatusInternalServerError
	}
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
