package profile

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		me, err := svc.Me(c.Context(), userID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(me)
	})

	r.Post("/profile", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Bio *string `json:"bio"`
			Pfp *string `json:"pfp"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if body.Bio == nil && body.Pfp == nil {
			return fiber.NewError(fiber.StatusBadRequest, "no valid fields to update")
		}
		updated, err := svc.Update(c.Context(), userID(c), body.Bio, body.Pfp)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(updated)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		p, err := svc.Public(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(p)
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func httpError(err error) *fiber.Error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
