package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	// allow callers to pass nil for body safely
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	initDB()
	if err := initPipeline(); err != nil {
		t.Fatalf("pipeline init failed: %v", err)
	}
	tmp := t.TempDir()
	_ = os.Setenv("UPLOAD_BASE", tmp)
	seedDB()
	r := gin.Default()
	setupRoutes(r)
	return r
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass12"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		b := resp.Body.String()
		t.Fatalf("register failed status=%d body=%s", resp.Code, b)
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass12"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("login failed status=%d body=%s", resp.Code, b)
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Create collection
	colBody, _ := json.Marshal(map[string]string{"name": "Test Binder"})
	resp = performRequest(r, http.MethodPost, "/collection", bytes.NewBuffer(colBody), token, "application/json")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("create collection failed status=%d body=%s", resp.Code, b)
	}

	// 4. Upload a scan (multipart). A non-image payload records a failed
	// scan rather than erroring the request.
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	_ = mw.WriteField("folder", "cards")
	w, _ := mw.CreateFormFile("file", "sample.txt")
	_, _ = w.Write([]byte("SOME CONTENT"))
	_ = mw.Close()
	resp = performRequest(r, http.MethodPost, "/scans", buf, token, mw.FormDataContentType())
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("scan upload failed status=%d body=%s", resp.Code, b)
	}
	var scanResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &scanResp)
	if matched, _ := scanResp["matched"].(bool); matched {
		t.Fatalf("text payload should not identify a card: %+v", scanResp)
	}

	// 5. Create entry by hand
	entryBody, _ := json.Marshal(map[string]any{
		"card_name":   "Lightning Bolt",
		"oracle_id":   "test-oracle",
		"printing_id": "test-printing",
		"set_code":    "STA",
		"quantity":    2,
	})
	resp = performRequest(r, http.MethodPost, "/entries", bytes.NewBuffer(entryBody), token, "application/json")
	if resp.Code != 200 {
		b := resp.Body.String()
		t.Fatalf("create entry failed status=%d body=%s", resp.Code, b)
	}

	// 6. Repeated entry bumps quantity instead of duplicating
	resp = performRequest(r, http.MethodPost, "/entries", bytes.NewBuffer(bytes.Clone(entryBody)), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("repeat entry failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var entryResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &entryResp)
	if q, _ := entryResp["quantity"].(float64); q != 4 {
		t.Fatalf("expected quantity 4 after repeat, got %v", entryResp["quantity"])
	}

	// 7. List entries
	resp = performRequest(r, http.MethodGet, "/entries", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list entries failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 8. Summary by set
	resp = performRequest(r, http.MethodGet, "/entries/summary", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("entries summary failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 9. List scans
	resp = performRequest(r, http.MethodGet, "/scans", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list scans failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 10. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/entries", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list entries got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
