package settings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
)

func newSettingsRouter(store *Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(store)
	h.RegisterRoutes(r.Group(""))
	h.RegisterAdminRoutes(r.Group("/admin"))
	return r
}

func TestPublicSettingsListsDocumentTypes(t *testing.T) {
	s := Defaults()
	s.ProcessingDays["diploma"] = 10
	r := newSettingsRouter(NewStaticStore(s))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/settings/public", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		TimeSlots     []string         `json:"timeSlots"`
		DocumentTypes []documentOption `json:"documentTypes"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.TimeSlots) != 4 || len(body.DocumentTypes) != 5 {
		t.Fatalf("unexpected body %+v", body)
	}
	for _, d := range body.DocumentTypes {
		if d.Type == "diploma" && d.ProcessingDays != 10 {
			t.Fatalf("override not applied: %+v", d)
		}
		if d.Type == "goodMoral" && d.ProcessingDays != 2 {
			t.Fatalf("unexpected base days: %+v", d)
		}
	}
}

func TestReloadEndpoint(t *testing.T) {
	resp := httptest.NewRecorder()
	newSettingsRouter(NewStaticStore(Defaults())).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/admin/settings/reload", nil))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 without a file, got %d", resp.Code)
	}

	path := writeSettings(t, "maxActiveRequestsPerUser: 2\n")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	r := newSettingsRouter(store)

	if err := os.WriteFile(path, []byte("maxActiveRequestsPerUser: 99\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/admin/settings/reload", nil))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid file, got %d", resp.Code)
	}
	if store.Get().MaxActivePerUser != 2 {
		t.Fatalf("invalid reload must keep previous settings")
	}

	if err := os.WriteFile(path, []byte("maxActiveRequestsPerUser: 7\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/admin/settings/reload", nil))
	if resp.Code != http.StatusOK || store.Get().MaxActivePerUser != 7 {
		t.Fatalf("expected reload to apply, got %d %d", resp.Code, store.Get().MaxActivePerUser)
	}
}
