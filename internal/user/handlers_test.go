package user

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/jwgillispie/sway/internal/cache"
	"github.com/jwgillispie/sway/internal/spot"
	"github.com/jwgillispie/sway/internal/storage"
)

type fakeUploader struct{}

func (fakeUploader) Upload(_ context.Context, path string, _ []byte, _ string) (string, error) {
	return "https://cdn.example/" + path, nil
}

func (fakeUploader) Delete(_ context.Context, _ string) error { return nil }

// stubAuth stands in for the bearer middleware and injects a fixed identity.
func stubAuth(userID, username string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("username", username)
		return c.Next()
	}
}

func newApp(mock pgxmock.PgxPoolIface, store *storage.Service) *fiber.App {
	app := fiber.New()
	spots := spot.NewService(mock, store, cache.New(nil, time.Minute))
	RegisterRoutes(app.Group("/users"), NewService(mock, spots), store, stubAuth("user-1", "hammock_lover"))
	return app
}

func TestGetMe(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id, subject_id, username`).
		WithArgs("user-1").
		WillReturnRows(userRows("user-1", "subject-abc", "hammock_lover", []string{"spot-1"}, []string{}))

	app := newApp(mock, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/me", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get me: %v status %d", err, resp.StatusCode)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.ID != "user-1" || len(u.FavoriteSpots) != 1 {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestPutMe(t *testing.T) {
	mock := newMock(t)

	name := "renamed"
	mock.ExpectQuery(`UPDATE users\s+SET username = COALESCE`).
		WithArgs("user-1", &name, (*string)(nil)).
		WillReturnRows(userRows("user-1", "subject-abc", "renamed", []string{}, []string{}))

	app := newApp(mock, nil)
	req := httptest.NewRequest(http.MethodPut, "/users/me", strings.NewReader(`{"username":"renamed"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("put me: %v status %d", err, resp.StatusCode)
	}
}

func TestProfilePhotoUpload(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), storage.KindProfilePhoto).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE users SET profile_photo`).
		WithArgs("user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, _ := w.CreateFormFile("file", "me.jpg")
	io.WriteString(fw, "jpeg-bytes")
	w.Close()

	app := newApp(mock, storage.NewService(mock, fakeUploader{}))
	req := httptest.NewRequest(http.MethodPost, "/users/me/profile-photo", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("profile photo: %v status %d", err, resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddFavoriteRoute(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("spot-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`UPDATE users SET favorite_spots = array_append`).
		WithArgs("user-1", "spot-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := newApp(mock, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/users/favorites/spot-1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("add favorite: %v status %d", err, resp.StatusCode)
	}
}

func TestAddFavoriteRouteSpotMissing(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	app := newApp(mock, nil)
	resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/users/favorites/ghost", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListFavoritesRouteEmpty(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id, subject_id, username`).
		WithArgs("user-1").
		WillReturnRows(userRows("user-1", "subject-abc", "hammock_lover", []string{}, []string{}))

	app := newApp(mock, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/favorites", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list favorites: %v status %d", err, resp.StatusCode)
	}

	raw, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("expected empty array, got %s", raw)
	}
}
