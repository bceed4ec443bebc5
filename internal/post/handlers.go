package post

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	// registered before /:id so fiber does not swallow it as a post id
	r.Get("/nearby", authMiddleware, func(c *fiber.Ctx) error {
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
		if latErr != nil || lngErr != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid latitude or longitude")
		}
		radius, _ := strconv.ParseFloat(c.Query("radius_m"), 64)

		gems, err := svc.Nearby(c.Context(), lat, lng, radius)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"gems": gems})
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		header, err := c.FormFile("image")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "image required")
		}
		lat, latErr := strconv.ParseFloat(c.FormValue("lat"), 64)
		lng, lngErr := strconv.ParseFloat(c.FormValue("lng"), 64)
		if latErr != nil || lngErr != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid latitude or longitude")
		}

		file, err := header.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable image")
		}
		defer file.Close()
		photo, err := io.ReadAll(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable image")
		}

		created, err := svc.Create(c.Context(), userID(c), photo, header.Filename, lat, lng, c.FormValue("description"))
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		detail, err := svc.Get(c.Context(), c.Params("id"), userID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(detail)
	})

	r.Post("/:id/like", authMiddleware, func(c *fiber.Ctx) error {
		likes, isLiked, err := svc.ToggleLike(c.Context(), c.Params("id"), userID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"likes": likes, "is_liked": isLiked})
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func httpError(err error) *fiber.Error {
	switch {
	case errors.Is(err, ErrInvalidCoordinates):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
