package handlers

import (
	"strconv"

	"libristack/internal/adapters/http/middleware"
	"libristack/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

// currentActor returns the caller set by the auth middleware
func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return domain.Actor{}, domain.ErrUnauthorized
	}
	return actor, nil
}

// paramID parses a positive numeric path parameter
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
