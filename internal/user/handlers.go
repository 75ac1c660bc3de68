package user

import (
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jwgillispie/sway/internal/spot"
	"github.com/jwgillispie/sway/internal/storage"
)

func RegisterRoutes(r fiber.Router, svc *Service, store *storage.Service, authMiddleware fiber.Handler) {
	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		u, err := svc.GetByID(c.Context(), requesterID(c))
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(u)
	})

	r.Put("/me", authMiddleware, func(c *fiber.Ctx) error {
		var patch ProfilePatch
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		u, err := svc.UpdateProfile(c.Context(), requesterID(c), patch)
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(u)
	})

	r.Post("/me/profile-photo", authMiddleware, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable photo upload")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable photo upload")
		}

		uid := requesterID(c)
		path := fmt.Sprintf("profile_photos/%s/%s", uid, uuid.NewString())
		url, err := store.Save(c.Context(), uid, storage.KindProfilePhoto, path, data, fh.Header.Get("Content-Type"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "internal error")
		}
		if err := svc.SetProfilePhoto(c.Context(), uid, url); err != nil {
			return errToHTTP(err)
		}
		return c.JSON(fiber.Map{"url": url})
	})

	r.Post("/favorites/:spot_id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.AddFavorite(c.Context(), requesterID(c), c.Params("spot_id")); err != nil {
			return errToHTTP(err)
		}
		return c.JSON(fiber.Map{"message": "Spot added to favorites"})
	})

	r.Delete("/favorites/:spot_id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.RemoveFavorite(c.Context(), requesterID(c), c.Params("spot_id")); err != nil {
			return errToHTTP(err)
		}
		return c.JSON(fiber.Map{"message": "Spot removed from favorites"})
	})

	r.Get("/favorites", authMiddleware, func(c *fiber.Ctx) error {
		spots, err := svc.ListFavorites(c.Context(), requesterID(c))
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(emptyIfNil(spots))
	})

	r.Get("/spots", authMiddleware, func(c *fiber.Ctx) error {
		spots, err := svc.ListCreated(c.Context(), requesterID(c))
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(emptyIfNil(spots))
	})
}

func requesterID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func emptyIfNil(spots []spot.Spot) []spot.Spot {
	if spots == nil {
		return []spot.Spot{}
	}
	return spots
}

func errToHTTP(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	case errors.Is(err, ErrSpotNotFound):
		return fiber.NewError(fiber.StatusNotFound, "spot not found")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
