package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cienislaw/thirtybees/pkg/batcher"
	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error returned by the tree, the batcher or request
// decoding to an HTTP status. Structural errors fall through to 500.
func statusFor(err error) int {
	var (
		invalid   *validationError
		cycle     *ntree.CycleError
		protected *ntree.ProtectedNodeError
		notFound  ntree.NotFoundError
		dup       *ntree.DuplicatePositionError
		path      *ntree.PathNotFoundError
		store     *ntree.StoreError
	)

	switch {
	case errors.As(err, &invalid),
		errors.Is(err, ntree.ErrInvalidReorder),
		errors.Is(err, ntree.ErrEmptyName),
		errors.Is(err, ntree.ErrEmptyPath),
		errors.Is(err, ntree.ErrInvalidTenantRoot):
		return fiber.StatusBadRequest
	case errors.As(err, &cycle):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &protected):
		return fiber.StatusForbidden
	case errors.As(err, &notFound),
		errors.As(err, &path),
		errors.Is(err, ntree.ErrUnknownTenant):
		return fiber.StatusNotFound
	case errors.As(err, &dup),
		errors.Is(err, ntree.ErrNotBootstrapped),
		errors.Is(err, ntree.ErrAlreadyBootstrapped):
		return fiber.StatusConflict
	case errors.As(err, &store),
		errors.Is(err, batcher.ErrQueueFull),
		errors.Is(err, batcher.ErrClosed):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// fail writes err as an ErrorResponse with its mapped status. Server side
// failures are logged.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"consistent", s.tree.IsConsistent(),
			"error", err,
		)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}
