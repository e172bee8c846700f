package handlers

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
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// stubExtractor maps image content to embeddings. Unknown content has no face.
type stubExtractor map[string][]float32

func (s stubExtractor) Extract(_ context.Context, image []byte) ([]float32, error) {
	if string(image) == "not an image" {
		return nil, extractor.ErrInvalidImage
	}
	if v, ok := s[string(image)]; ok {
		return v, nil
	}
	return nil, extractor.ErrNoFace
}

// setupFaceService creates a service with alice enrolled and a CSV recorder.
func setupFaceService(t *testing.T) (*recognition.Service, *attendance.CSVRecorder) {
	t.Helper()
	dir := t.TempDir()

	ext := stubExtractor{
		"alice.jpg":  {1, 0, 0},
		"alice2.jpg": {0.95, 0.05, 0},
		"bob.jpg":    {0, 1, 0},
		"stranger":   {0.3, 0.2, 0.9},
	}
	g := gallery.New(filepath.Join(dir, "face_db.gob"))
	g.Add("alice", []float32{1, 0, 0})

	rec := attendance.NewCSVRecorder(filepath.Join(dir, "attendance_log.csv"))
	svc := recognition.NewService(ext, g, rec, recognition.Options{Threshold: 0.5, DefaultAddress: "Unknown"})
	return svc, rec
}

// multipartRequest builds a multipart POST with the given fields. A "file"
// entry in fields is sent as a file part.
func multipartRequest(t *testing.T, path string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, value := range fields {
		if key == "file" {
			part, err := mw.CreateFormFile("file", "capture.jpg")
			if err != nil {
				t.Fatal(err)
			}
			part.Write([]byte(value))
			continue
		}
		if err := mw.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// assertEnvelope checks the code and msg of a body envelope sent with HTTP 200.
func assertEnvelope(t *testing.T, recorder *httptest.ResponseRecorder, code int, msg string) {
	t.Helper()
	assertStatusCode(t, recorder, http.StatusOK)
	var result codeResponse
	parseJSONResponse(t, recorder, &result)
	if result.Code != code || result.Msg != msg {
		t.Errorf("expected envelope {%d %q}, got {%d %q}", code, msg, result.Code, result.Msg)
	}
}
