package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

type staticExtractor []float32

func (s staticExtractor) Extract(_ context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, extractor.ErrInvalidImage
	}
	return s, nil
}

func setupServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	g := gallery.New(filepath.Join(dir, "face_db.gob"))
	rec := attendance.NewCSVRecorder(filepath.Join(dir, "attendance_log.csv"))
	svc := recognition.NewService(staticExtractor{1, 0}, g, rec, recognition.Options{Threshold: 0.5, DefaultAddress: "Unknown"})
	return NewServer(&config.WebConfig{Host: "127.0.0.1", Port: 0, AllowedOrigins: []string{"*"}}, svc, rec)
}

func postForm(t *testing.T, srv *Server, path string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if k == "file" {
			part, _ := mw.CreateFormFile("file", "face.jpg")
			part.Write([]byte(v))
			continue
		}
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestRoutes_RegisterThenVerify(t *testing.T) {
	srv := setupServer(t)

	recorder := postForm(t, srv, "/api/face/register", map[string]string{"user_id": "alice", "file": "jpeg"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = postForm(t, srv, "/api/face/verify", map[string]string{"token": "t", "address": "Lobby", "file": "jpeg"})
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("verify: bad JSON %q: %v", recorder.Body.String(), err)
	}
	if result["isMatch"] != true || result["userId"] != "alice" {
		t.Errorf("expected alice match, got %v", result)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/attendance", nil)
	recorder = httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)
	var records []map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &records); err != nil {
		t.Fatalf("attendance: bad JSON %q: %v", recorder.Body.String(), err)
	}
	if len(records) != 1 || records[0]["userId"] != "alice" || records[0]["address"] != "Lobby" {
		t.Errorf("unexpected attendance %v", records)
	}
}

func TestRoutes_GetEndpoints(t *testing.T) {
	srv := setupServer(t)

	for _, path := range []string{"/", "/api/v1/health", "/api/face/users", "/api/attendance", "/api/attendance/alice/count"} {
		t.Run(path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			srv.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
			if recorder.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", recorder.Code)
			}
			if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
		})
	}
}

func TestRoutes_CORSPreflight(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/face/verify", nil)
	req.Header.Set("Origin", "https://kiosk.example.com")
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func TestRoutes_DefaultConfigAllowsLANClient(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "")
	cfg := config.Load()

	dir := t.TempDir()
	g := gallery.New(filepath.Join(dir, "face_db.gob"))
	rec := attendance.NewCSVRecorder(filepath.Join(dir, "attendance_log.csv"))
	svc := recognition.NewService(staticExtractor{1, 0}, g, rec, recognition.Options{Threshold: 0.5})
	srv := NewServer(&cfg.Web, svc, rec)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://192.168.1.20:5173")
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected LAN origin to be allowed by default, got %q", got)
	}
}
