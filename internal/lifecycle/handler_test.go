package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"registrar-backend/internal/shared/auth"
	"registrar-backend/internal/shared/server/middleware"
	"registrar-backend/internal/shared/storage/object/local"
)

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, env *testEnv) *gin.Engine {
	t.Helper()
	t.Setenv("ENV", "dev")
	t.Setenv("JWT_SECRET", "handler-test-secret")

	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", middleware.Auth())
	h := NewHandler(env.svc)
	h.RegisterRoutes(api)
	h.RegisterAdminRoutes(api.Group("/admin", middleware.RequireAdmin()))
	return r
}

func token(t *testing.T, claims auth.Claims) string {
	t.Helper()
	raw, err := auth.SignJWT(claims)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + raw
}

func studentToken(t *testing.T) string {
	return token(t, auth.Claims{Sub: student.ID, Name: student.Name, Email: student.Email, Role: auth.RoleStudent})
}

func adminToken(t *testing.T) string {
	return token(t, auth.Claims{Sub: admin.ID, Name: admin.Name, Role: auth.RoleAdmin})
}

func do(t *testing.T, r *gin.Engine, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, resp.Body.String())
	}
	return env
}

func TestHandlerCreateAndGet(t *testing.T) {
	env := newEnv(t, nil)
	r := newTestRouter(t, env)

	resp := do(t, r, http.MethodPost, "/api/v1/document-requests", studentToken(t), `{"documentType":"form137","purpose":"transfer"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created requestResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != "submitted" || created.DocumentLabel != "Form 137 (Transfer Credentials)" {
		t.Fatalf("unexpected response %+v", created)
	}

	resp = do(t, r, http.MethodGet, "/api/v1/document-requests/"+created.ID, studentToken(t), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	other := token(t, auth.Claims{Sub: "student-2", Role: auth.RoleStudent})
	resp = do(t, r, http.MethodGet, "/api/v1/document-requests/"+created.ID, other, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another student, got %d", resp.Code)
	}
}

func TestHandlerCreateValidation(t *testing.T) {
	env := newEnv(t, nil)
	r := newTestRouter(t, env)

	tests := []struct {
		name string
		body string
		code int
		err  string
	}{
		{name: "missing purpose", body: `{"documentType":"form137"}`, code: http.StatusBadRequest, err: "validation_error"},
		{name: "unknown type", body: `{"documentType":"passport","purpose":"x"}`, code: http.StatusBadRequest, err: "validation_error"},
		{name: "unknown field", body: `{"documentType":"form137","purpose":"x","status":"approved"}`, code: http.StatusBadRequest, err: "validation_error"},
		{name: "bad json", body: `{`, code: http.StatusBadRequest, err: "validation_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, r, http.MethodPost, "/api/v1/document-requests", studentToken(t), tc.body)
			if resp.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, resp.Code, resp.Body.String())
			}
			if got := decodeError(t, resp).Error.Code; got != tc.err {
				t.Fatalf("expected code %s, got %s", tc.err, got)
			}
		})
	}

	resp := do(t, r, http.MethodPost, "/api/v1/document-requests", studentToken(t), `{"documentType":"form137"}`)
	if details := decodeError(t, resp).Error.Details; details["purpose"] != "required" {
		t.Fatalf("expected purpose detail, got %v", details)
	}
}

func TestHandlerAdminRoutesRequireRole(t *testing.T) {
	env := newEnv(t, nil)
	r := newTestRouter(t, env)

	resp := do(t, r, http.MethodGet, "/api/v1/admin/document-requests", studentToken(t), "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	resp = do(t, r, http.MethodGet, "/api/v1/admin/document-requests", "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	resp = do(t, r, http.MethodPost, "/api/v1/document-requests", adminToken(t), `{"documentType":"form137","purpose":"x"}`)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected admins to be refused, got %d", resp.Code)
	}
}

func TestHandlerStatusTransitionErrors(t *testing.T) {
	env := newEnv(t, nil)
	r := newTestRouter(t, env)
	req := env.create(t, CreateInput{})
	path := "/api/v1/admin/document-requests/" + req.ID + "/status"

	resp := do(t, r, http.MethodPatch, path, adminToken(t), `{"status":"completed"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	body := decodeError(t, resp)
	if body.Error.Code != "invalid_transition" || body.Error.Details["from"] != "submitted" || body.Error.Details["to"] != "completed" {
		t.Fatalf("unexpected error body %+v", body)
	}

	resp = do(t, r, http.MethodPatch, path, adminToken(t), `{"status":"rejected"}`)
	if resp.Code != http.StatusBadRequest || decodeError(t, resp).Error.Code != "rejection_reason_required" {
		t.Fatalf("expected rejection reason error, got %d %s", resp.Code, resp.Body.String())
	}

	resp = do(t, r, http.MethodPatch, "/api/v1/admin/document-requests/ghost/status", adminToken(t), `{"status":"pending"}`)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHandlerApproveVerifyAndPickup(t *testing.T) {
	env := newEnv(t, nil)
	r := newTestRouter(t, env)
	req := env.create(t, CreateInput{})
	env.move(t, req.ID, "pending")

	resp := do(t, r, http.MethodPatch, "/api/v1/admin/document-requests/"+req.ID+"/status", adminToken(t),
		`{"status":"approved","pickupSchedule":{"timeSlot":"08:00 AM - 10:00 AM"}}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", resp.Code, resp.Body.String())
	}
	var approved struct {
		Request requestResponse `json:"request"`
		Warning string          `json:"warning"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &approved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	ps := approved.Request.PickupSchedule
	if ps == nil || ps.VerificationCode == "" || !ps.HasStub || approved.Warning != "" {
		t.Fatalf("unexpected approval %+v", approved)
	}

	verifyBody, _ := json.Marshal(map[string]string{"qrData": ps.QRPayload})
	resp = do(t, r, http.MethodPost, "/api/v1/admin/pickup/verify", adminToken(t), string(verifyBody))
	if resp.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", resp.Code, resp.Body.String())
	}
	var verified map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &verified)
	if verified["valid"] != true {
		t.Fatalf("expected valid, got %v", verified)
	}

	resp = do(t, r, http.MethodPost, "/api/v1/admin/pickup/verify", adminToken(t), `{"qrData":"not json"}`)
	_ = json.Unmarshal(resp.Body.Bytes(), &verified)
	if resp.Code != http.StatusOK || verified["valid"] != false || verified["reason"] != "FORMAT_ERROR" {
		t.Fatalf("expected FORMAT_ERROR, got %d %v", resp.Code, verified)
	}

	pickupPath := "/api/v1/admin/document-requests/" + req.ID + "/pickup"
	resp = do(t, r, http.MethodPost, pickupPath, adminToken(t), `{"verificationCode":"nope"}`)
	if resp.Code != http.StatusConflict || decodeError(t, resp).Error.Details["reason"] != "CODE_MISMATCH" {
		t.Fatalf("expected CODE_MISMATCH, got %d %s", resp.Code, resp.Body.String())
	}
	resp = do(t, r, http.MethodPost, pickupPath, adminToken(t), `{"verificationCode":"`+ps.VerificationCode+`"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("pickup: %d %s", resp.Code, resp.Body.String())
	}
	var done requestResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &done)
	if done.Status != "completed" || !done.Archived {
		t.Fatalf("unexpected pickup result %+v", done)
	}
}

func TestHandlerStepIndexParsing(t *testing.T) {
	env := newEnv(t, nil)
	env.svc.StrictStepIndex = true
	r := newTestRouter(t, env)
	req := env.create(t, CreateInput{})
	base := "/api/v1/admin/document-requests/" + req.ID + "/steps/"

	resp := do(t, r, http.MethodPatch, base+"abc", adminToken(t), `{"status":"completed"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric index, got %d", resp.Code)
	}
	resp = do(t, r, http.MethodPatch, base+"42", adminToken(t), `{"status":"completed"}`)
	if resp.Code != http.StatusBadRequest || decodeError(t, resp).Error.Code != "index_out_of_range" {
		t.Fatalf("expected index_out_of_range, got %d %s", resp.Code, resp.Body.String())
	}
	resp = do(t, r, http.MethodPatch, base+"0", adminToken(t), `{"status":"in-progress","notes":"pulled file"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("step update: %d %s", resp.Code, resp.Body.String())
	}
}

func TestHandlerBulkStatus(t *testing.T) {
	env := newEnv(t, nil)
	r := newTestRouter(t, env)
	a := env.create(t, CreateInput{})
	b := env.create(t, CreateInput{DocumentType: "diploma"})

	body := `{"ids":["` + a.ID + `","` + b.ID + `","ghost"],"status":"pending"}`
	resp := do(t, r, http.MethodPost, "/api/v1/admin/document-requests/bulk-status", adminToken(t), body)
	if resp.Code != http.StatusOK {
		t.Fatalf("bulk: %d %s", resp.Code, resp.Body.String())
	}
	var res BulkResult
	_ = json.Unmarshal(resp.Body.Bytes(), &res)
	if res.Updated != 2 || len(res.Skipped) != 1 || res.Skipped[0] != "ghost" {
		t.Fatalf("unexpected bulk result %+v", res)
	}

	resp = do(t, r, http.MethodPost, "/api/v1/admin/document-requests/bulk-status", adminToken(t), `{"ids":[],"status":"pending"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", resp.Code)
	}
}

func TestHandlerDownloadStub(t *testing.T) {
	env := newEnv(t, nil)
	store := local.New(t.TempDir())
	env.svc.Store = store
	r := newTestRouter(t, env)
	req := env.create(t, CreateInput{})

	resp := do(t, r, http.MethodGet, "/api/v1/document-requests/"+req.ID+"/stub", studentToken(t), "")
	if resp.Code != http.StatusNotFound || decodeError(t, resp).Error.Code != "stub_not_available" {
		t.Fatalf("expected stub_not_available, got %d %s", resp.Code, resp.Body.String())
	}

	approved := env.move(t, req.ID, "pending", "approved")
	key := approved.PickupSchedule.ArtifactRef
	if _, err := store.Put(context.Background(), key, "application/pdf", strings.NewReader("%PDF-1.3 stub")); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp = do(t, r, http.MethodGet, "/api/v1/document-requests/"+req.ID+"/stub", studentToken(t), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "pickup_stub_Ana_Reyes_1.pdf") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if !strings.HasPrefix(resp.Body.String(), "%PDF") {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}

func TestHandlerStoreFailureMapsTo503(t *testing.T) {
	env := newEnv(t, nil)
	r := newTestRouter(t, env)
	req := env.create(t, CreateInput{})
	env.svc.Repo = failingSaveRepo{env.repo}

	resp := do(t, r, http.MethodPatch, "/api/v1/admin/document-requests/"+req.ID+"/archive", adminToken(t), "")
	if resp.Code != http.StatusServiceUnavailable || decodeError(t, resp).Error.Code != "operation_failed" {
		t.Fatalf("expected 503 operation_failed, got %d %s", resp.Code, resp.Body.String())
	}
}
