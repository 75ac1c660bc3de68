package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/jwgillispie/sway/internal/config"
)

func TestHealthRoute(t *testing.T) {
	s := NewServer(config.Config{AuthJWTSecret: "secret", ServerPort: ":0"}, nil, nil, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
}

func TestRootRoute(t *testing.T) {
	s := NewServer(config.Config{AuthJWTSecret: "secret", ServerPort: ":0"}, nil, nil, nil)

	req := httptest.NewRequest("GET", "/", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "online" {
		t.Fatalf("unexpected body: %v", body)
	}
}
