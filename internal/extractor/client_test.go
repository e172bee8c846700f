package extractor

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// testPNG encodes a solid-color image of the given size.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

// setupEmbeddingServer creates a mock embedding server returning the given faces.
func setupEmbeddingServer(t *testing.T, status int, faces []FaceDetection) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file: %v", err)
		} else {
			file.Close()
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte("model exploded"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(FaceResponse{FacesCount: len(faces), Faces: faces, Model: "buffalo_l"})
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func TestExtract_LargestFace(t *testing.T) {
	faces := []FaceDetection{
		{FaceIndex: 0, Embedding: []float32{1, 0}, BBox: []float64{0, 0, 10, 10}},
		{FaceIndex: 1, Embedding: []float32{0, 1}, BBox: []float64{0, 0, 40, 30}},
		{FaceIndex: 2, Embedding: []float32{1, 1}, BBox: []float64{5, 5, 20, 20}},
	}
	server, calls := setupEmbeddingServer(t, http.StatusOK, faces)

	c := NewClient(Options{BaseURL: server.URL + "/"})
	emb, err := c.Extract(context.Background(), testPNG(t, 16, 16))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(emb) != 2 || emb[0] != 0 || emb[1] != 1 {
		t.Errorf("expected embedding of the largest face, got %v", emb)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestExtract_NoFace(t *testing.T) {
	server, _ := setupEmbeddingServer(t, http.StatusOK, nil)

	c := NewClient(Options{BaseURL: server.URL})
	_, err := c.Extract(context.Background(), testPNG(t, 8, 8))
	if !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
}

func TestExtract_InvalidImageSkipsServer(t *testing.T) {
	server, calls := setupEmbeddingServer(t, http.StatusOK, nil)

	c := NewClient(Options{BaseURL: server.URL})
	_, err := c.Extract(context.Background(), []byte("not an image at all"))
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected embedding server not to be called, got %d calls", calls.Load())
	}
}

func TestExtract_ServerError(t *testing.T) {
	server, _ := setupEmbeddingServer(t, http.StatusInternalServerError, nil)

	c := NewClient(Options{BaseURL: server.URL})
	_, err := c.Extract(context.Background(), testPNG(t, 8, 8))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoFace) || errors.Is(err, ErrInvalidImage) {
		t.Errorf("server failure must not look like a client error: %v", err)
	}
}

func TestExtract_ContextCanceled(t *testing.T) {
	server, _ := setupEmbeddingServer(t, http.StatusOK, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Options{BaseURL: server.URL, RequestsPerSecond: 1})
	if _, err := c.Extract(ctx, testPNG(t, 8, 8)); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestLargestFace(t *testing.T) {
	tests := []struct {
		name      string
		faces     []FaceDetection
		wantIndex int
		wantOK    bool
	}{
		{"empty", nil, 0, false},
		{"single", []FaceDetection{{FaceIndex: 3, Embedding: []float32{1}, BBox: []float64{0, 0, 1, 1}}}, 3, true},
		{
			"tie keeps first",
			[]FaceDetection{
				{FaceIndex: 0, Embedding: []float32{1}, BBox: []float64{0, 0, 2, 2}},
				{FaceIndex: 1, Embedding: []float32{1}, BBox: []float64{1, 1, 3, 3}},
			},
			0, true,
		},
		{
			"skips faces without embedding",
			[]FaceDetection{
				{FaceIndex: 0, BBox: []float64{0, 0, 100, 100}},
				{FaceIndex: 1, Embedding: []float32{1}, BBox: []float64{0, 0, 2, 2}},
			},
			1, true,
		},
		{
			"malformed bbox has zero area",
			[]FaceDetection{
				{FaceIndex: 0, Embedding: []float32{1}, BBox: []float64{0, 0}},
				{FaceIndex: 1, Embedding: []float32{1}, BBox: []float64{0, 0, 1, 1}},
			},
			1, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			face, ok := LargestFace(tt.faces)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && face.FaceIndex != tt.wantIndex {
				t.Errorf("expected face %d, got %d", tt.wantIndex, face.FaceIndex)
			}
		})
	}
}

func TestPrepareImage_Downscales(t *testing.T) {
	out, err := PrepareImage(testPNG(t, 400, 200), 100)
	if err != nil {
		t.Fatalf("PrepareImage failed: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("expected JPEG output: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("expected 100x50, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestPrepareImage_KeepsSmallImages(t *testing.T) {
	out, err := PrepareImage(testPNG(t, 30, 60), 100)
	if err != nil {
		t.Fatalf("PrepareImage failed: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("expected JPEG output: %v", err)
	}
	if cfg.Width != 30 || cfg.Height != 60 {
		t.Errorf("expected 30x60, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestPrepareImage_Invalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("garbage"), {0xFF, 0xD8, 0xFF}} {
		if _, err := PrepareImage(data, 100); !errors.Is(err, ErrInvalidImage) {
			t.Errorf("expected ErrInvalidImage for %q, got %v", data, err)
		}
	}
}

// withExifOrientation inserts an APP1 Exif segment carrying only the
// Orientation tag right after the JPEG SOI marker.
func withExifOrientation(t *testing.T, jpg []byte, orientation uint16) []byte {
	t.Helper()
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		t.Fatal("not a JPEG")
	}

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, binary.BigEndian, uint16(0x002A))
	binary.Write(&tiff, binary.BigEndian, uint32(8))      // first IFD offset
	binary.Write(&tiff, binary.BigEndian, uint16(1))      // one entry
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112)) // Orientation
	binary.Write(&tiff, binary.BigEndian, uint16(3))      // SHORT
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, orientation)
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0)) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpg[2:])
	return out.Bytes()
}

func TestPrepareImage_AppliesExifOrientation(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, img, nil); err != nil {
		t.Fatal(err)
	}
	rotated := withExifOrientation(t, jpg.Bytes(), 6)

	out, err := PrepareImage(rotated, 0)
	if err != nil {
		t.Fatalf("PrepareImage failed: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("expected JPEG output: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 200 {
		t.Errorf("expected upright 100x200, got %dx%d", cfg.Width, cfg.Height)
	}
	if bytes.Contains(out, []byte("Exif")) {
		t.Error("expected orientation to be baked in and the Exif segment dropped")
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring width x height
// with no pixel data.
func pngHeader(width, height uint32) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	binary.Write(&ihdr, binary.BigEndian, width)
	binary.Write(&ihdr, binary.BigEndian, height)
	ihdr.Write([]byte{8, 6, 0, 0, 0}) // 8-bit RGBA

	var out bytes.Buffer
	out.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&out, binary.BigEndian, uint32(ihdr.Len()-4))
	out.Write(ihdr.Bytes())
	binary.Write(&out, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return out.Bytes()
}

func TestPrepareImage_RejectsOversizedHeader(t *testing.T) {
	_, err := PrepareImage(pngHeader(40000, 40000), 100)
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("expected pixel budget error, got %v", err)
	}
}
