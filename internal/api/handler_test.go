package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tebita/sidekick/internal/domain"
	"github.com/tebita/sidekick/internal/state"
)

type stubRepo struct {
	profiles map[string]*domain.Profile
}

func (r *stubRepo) InsertProfile(context.Context, string, *domain.Profile) (int64, error) {
	return 0, nil
}

func (r *stubRepo) FetchProfile(_ context.Context, identityID string) (*domain.Profile, error) {
	return r.profiles[identityID], nil
}

func (r *stubRepo) Ping(context.Context) error { return nil }
func (r *stubRepo) Close() error               { return nil }

func newTestRouter(repo *stubRepo) chi.Router {
	r := chi.NewRouter()
	NewHandler(state.New(nil, nil, nil), repo).RegisterRoutes(r)
	return r
}

func TestGetState(t *testing.T) {
	r := newTestRouter(&stubRepo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var snap domain.SessionState
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !snap.PanelVisible {
		t.Error("Expected the default state snapshot")
	}
}

func TestGetProfile(t *testing.T) {
	name := "Ada Lovelace"
	r := newTestRouter(&stubRepo{profiles: map[string]*domain.Profile{
		"u-1": {Name: &name},
	}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile/u-1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var p domain.Profile
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if p.Name == nil || *p.Name != "Ada Lovelace" {
		t.Errorf("Expected stored profile, got %+v", p)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	r := newTestRouter(&stubRepo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile/nobody", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}
