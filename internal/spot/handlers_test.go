package spot

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func stubAuth(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("username", "hammock_lover")
		return c.Next()
	}
}

func newApp(mock pgxmock.PgxPoolIface) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/spots"), newService(mock), stubAuth("user-1"))
	return app
}

func spotForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	w.Close()
	return &body, w.FormDataContentType()
}

func TestCreateSpotRoute(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`INSERT INTO spots`).
		WithArgs(pgxmock.AnyArg(), "Shady Pines", (*string)(nil), -74.0, 40.0,
			[]string{TreePine, TreeOlive}, (*float64)(nil),
			false, false, true, false, false, true,
			[]string{}, "user-1", false).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mock.ExpectExec(`UPDATE users SET created_spots = array_append`).
		WithArgs("user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	body, contentType := spotForm(t, map[string]string{
		"name":       "Shady Pines",
		"latitude":   "40",
		"longitude":  "-74",
		"tree_types": `["pine","olive"]`,
		"amenities":  `{"shade":true,"swimming":true}`,
	})

	app := newApp(mock)
	req := httptest.NewRequest(http.MethodPost, "/spots/", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create spot: %v status %d", err, resp.StatusCode)
	}

	var sp Spot
	if err := json.NewDecoder(resp.Body).Decode(&sp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sp.Name != "Shady Pines" || !sp.Amenities.Swimming {
		t.Fatalf("unexpected spot: %+v", sp)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateSpotRouteRequiresName(t *testing.T) {
	body, contentType := spotForm(t, map[string]string{
		"latitude":  "40",
		"longitude": "-74",
	})

	app := newApp(newMock(t))
	req := httptest.NewRequest(http.MethodPost, "/spots/", body)
	req.Header.Set("Content-Type", contentType)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateSpotRouteRejectsMalformedJSON(t *testing.T) {
	body, contentType := spotForm(t, map[string]string{
		"name":       "x",
		"latitude":   "40",
		"longitude":  "-74",
		"tree_types": `pine,olive`,
	})

	app := newApp(newMock(t))
	req := httptest.NewRequest(http.MethodPost, "/spots/", body)
	req.Header.Set("Content-Type", contentType)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListSpotsRouteParsesQuery(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`ST_DWithin\(location, .+shade = TRUE.+ORDER BY ST_Distance`).
		WithArgs(-74.0, 40.0, 1000.0, 5).
		WillReturnRows(spotRowWith("spot-near", "user-1", 40.001, -74.001))

	app := newApp(mock)
	req := httptest.NewRequest(http.MethodGet,
		"/spots/?lat=40&lng=-74&radius=1000&limit=5&has_amenity=shade", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list spots: %v status %d", err, resp.StatusCode)
	}

	var spots []Spot
	if err := json.NewDecoder(resp.Body).Decode(&spots); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(spots) != 1 || spots[0].DistanceM == nil {
		t.Fatalf("unexpected spots: %+v", spots)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListSpotsRouteBadLat(t *testing.T) {
	app := newApp(newMock(t))
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/spots/?lat=abc&lng=-74", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetSpotRoute(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`FROM spots WHERE id=\$1`).
		WithArgs("spot-1").
		WillReturnRows(spotRow("spot-1", "user-1"))
	mock.ExpectQuery(`SELECT id FROM reviews WHERE spot_id=\$1`).
		WithArgs("spot-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	app := newApp(mock)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/spots/spot-1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get spot: %v status %d", err, resp.StatusCode)
	}
}

func TestGetSpotRouteNotFound(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`FROM spots WHERE id=\$1`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	app := newApp(mock)
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/spots/ghost", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateSpotRoute(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`FROM spots WHERE id=\$1`).
		WithArgs("spot-1").
		WillReturnRows(spotRow("spot-1", "user-1"))
	mock.ExpectQuery(`UPDATE spots`).
		WithArgs("spot-1", "Renamed", (*string)(nil), -74.0, 40.0,
			[]string{TreePine}, (*float64)(nil),
			false, true, true, false, false, false,
			false).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	app := newApp(mock)
	req := httptest.NewRequest(http.MethodPut, "/spots/spot-1", strings.NewReader(`{"name":"Renamed"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("update spot: %v status %d", err, resp.StatusCode)
	}
}

func TestUpdateSpotRouteForbidden(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`FROM spots WHERE id=\$1`).
		WithArgs("spot-1").
		WillReturnRows(spotRow("spot-1", "someone-else"))

	app := newApp(mock)
	req := httptest.NewRequest(http.MethodPut, "/spots/spot-1", strings.NewReader(`{"name":"Hijacked"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestDeleteSpotRoute(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`FROM spots WHERE id=\$1`).
		WithArgs("spot-1").
		WillReturnRows(spotRow("spot-1", "user-1"))
	mock.ExpectExec(`DELETE FROM spots WHERE id=\$1`).
		WithArgs("spot-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE users SET created_spots = array_remove`).
		WithArgs("user-1", "spot-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := newApp(mock)
	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/spots/spot-1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("delete spot: %v status %d", err, resp.StatusCode)
	}
}
