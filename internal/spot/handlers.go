package spot

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		filter, err := filterFromQuery(c)
		if err != nil {
			return err
		}
		spots, err := svc.List(c.Context(), filter)
		if err != nil {
			return errToHTTP(err)
		}
		if spots == nil {
			spots = []Spot{}
		}
		return c.JSON(spots)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		in, err := createInputFromForm(c)
		if err != nil {
			return err
		}
		photos, err := formPhotos(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable photo upload")
		}
		sp, err := svc.Create(c.Context(), in, photos, requesterID(c))
		if err != nil {
			return errToHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sp)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		sp, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(sp)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var patch Patch
		if err := c.BodyParser(&patch); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		sp, err := svc.Update(c.Context(), c.Params("id"), patch, requesterID(c))
		if err != nil {
			return errToHTTP(err)
		}
		return c.JSON(sp)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id"), requesterID(c)); err != nil {
			return errToHTTP(err)
		}
		return c.JSON(fiber.Map{"message": "Spot deleted successfully"})
	})

	r.Post("/:id/photos", authMiddleware, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		data, contentType, err := readUpload(fh, fh.Header.Get("Content-Type"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable photo upload")
		}
		url, err := svc.AddPhoto(c.Context(), c.Params("id"), data, contentType, requesterID(c))
		if err != nil {
			return errToHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
	})
}

func filterFromQuery(c *fiber.Ctx) (Filter, error) {
	var f Filter

	if lat, lng := c.Query("lat"), c.Query("lng"); lat != "" && lng != "" {
		latV, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return Filter{}, fiber.NewError(fiber.StatusBadRequest, "invalid lat")
		}
		lngV, err := strconv.ParseFloat(lng, 64)
		if err != nil {
			return Filter{}, fiber.NewError(fiber.StatusBadRequest, "invalid lng")
		}
		f.Lat, f.Lng = &latV, &lngV
	}
	if radius := c.Query("radius"); radius != "" {
		v, err := strconv.ParseFloat(radius, 64)
		if err != nil {
			return Filter{}, fiber.NewError(fiber.StatusBadRequest, "invalid radius")
		}
		f.RadiusM = v
	}
	if limit := c.Query("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil {
			return Filter{}, fiber.NewError(fiber.StatusBadRequest, "invalid limit")
		}
		f.Limit = v
	}
	f.TreeType = c.Query("tree_type")
	if min := c.Query("min_rating"); min != "" {
		v, err := strconv.ParseFloat(min, 64)
		if err != nil {
			return Filter{}, fiber.NewError(fiber.StatusBadRequest, "invalid min_rating")
		}
		f.MinRating = &v
	}
	for _, a := range c.Context().QueryArgs().PeekMulti("has_amenity") {
		f.Amenities = append(f.Amenities, string(a))
	}
	return f, nil
}

func createInputFromForm(c *fiber.Ctx) (CreateInput, error) {
	var in CreateInput

	in.Name = c.FormValue("name")
	if in.Name == "" {
		return CreateInput{}, fiber.NewError(fiber.StatusBadRequest, "name required")
	}
	if v := c.FormValue("description"); v != "" {
		in.Description = &v
	}

	lat, err := strconv.ParseFloat(c.FormValue("latitude"), 64)
	if err != nil {
		return CreateInput{}, fiber.NewError(fiber.StatusBadRequest, "latitude required")
	}
	lng, err := strconv.ParseFloat(c.FormValue("longitude"), 64)
	if err != nil {
		return CreateInput{}, fiber.NewError(fiber.StatusBadRequest, "longitude required")
	}
	in.Latitude, in.Longitude = lat, lng

	if raw := c.FormValue("tree_types"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.TreeTypes); err != nil {
			return CreateInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid JSON format for tree_types or amenities")
		}
	}
	if raw := c.FormValue("amenities"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Amenities); err != nil {
			return CreateInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid JSON format for tree_types or amenities")
		}
	}
	if raw := c.FormValue("distance_between_trees"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return CreateInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid distance_between_trees")
		}
		in.DistanceBetweenTrees = &v
	}
	in.IsPrivate, _ = strconv.ParseBool(c.FormValue("is_private"))
	return in, nil
}

func formPhotos(c *fiber.Ctx) ([]PhotoUpload, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}
	var uploads []PhotoUpload
	for _, fh := range form.File["photos"] {
		data, contentType, err := readUpload(fh, fh.Header.Get("Content-Type"))
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, PhotoUpload{Data: data, ContentType: contentType})
	}
	return uploads, nil
}

func readUpload(fh *multipart.FileHeader, contentType string) ([]byte, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func requesterID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func errToHTTP(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "spot not found")
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, "you don't have permission to modify this spot")
	case errors.Is(err, ErrInvalidTreeType),
		errors.Is(err, ErrInvalidCoordinates),
		errors.Is(err, ErrInvalidDistance),
		errors.Is(err, ErrInvalidAmenity):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
