package review

import (
	"errors"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:spot_id", authMiddleware, func(c *fiber.Ctx) error {
		in, err := createInputFromForm(c)
		if err != nil {
			return err
		}
		photos, err := formPhotos(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable photo upload")
		}
		rev, err := svc.Create(c.Context(), c.Params("spot_id"), in, photos, requesterID(c), requesterName(c))
		if err != nil {
			return errToHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(rev)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		rev, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(rev)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var patch Patch
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		rev, err := svc.Update(c.Context(), c.Params("id"), patch, requesterID(c))
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(rev)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id"), requesterID(c)); err != nil {
			return errToHTTP(err)
		}
		return c.JSON(fiber.Map{"message": "Review deleted successfully"})
	})

	r.Post("/:id/photos", authMiddleware, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		data, err := readUpload(fh)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable photo upload")
		}
		url, err := svc.AddPhoto(c.Context(), c.Params("id"), data, fh.Header.Get("Content-Type"), requesterID(c))
		if err != nil {
			return errToHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
	})
}

func createInputFromForm(c *fiber.Ctx) (CreateInput, error) {
	var in CreateInput

	axes := []struct {
		field string
		dst   *float64
	}{
		{"view_rating", &in.View},
		{"comfort_rating", &in.Comfort},
		{"accessibility_rating", &in.Accessibility},
		{"privacy_rating", &in.Privacy},
	}
	for _, a := range axes {
		v, err := strconv.ParseFloat(c.FormValue(a.field), 64)
		if err != nil {
			return CreateInput{}, fiber.NewError(fiber.StatusBadRequest, a.field+" required")
		}
		*a.dst = v
	}
	if v := c.FormValue("comment"); v != "" {
		in.Comment = &v
	}
	return in, nil
}

func formPhotos(c *fiber.Ctx) ([]PhotoUpload, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}
	var uploads []PhotoUpload
	for _, fh := range form.File["photos"] {
		data, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, PhotoUpload{Data: data, ContentType: fh.Header.Get("Content-Type")})
	}
	return uploads, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func requesterID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func requesterName(c *fiber.Ctx) string {
	name, _ := c.Locals("username").(string)
	return name
}

func errToHTTP(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "review not found")
	case errors.Is(err, ErrSpotNotFound):
		return fiber.NewError(fiber.StatusNotFound, "spot not found")
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, "you don't have permission to modify this review")
	case errors.Is(err, ErrAlreadyReviewed):
		return fiber.NewError(fiber.StatusConflict, "you have already reviewed this spot, update your existing review")
	case errors.Is(err, ErrInvalidRating):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
