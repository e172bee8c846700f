package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// loadConfig reads the environment and applies the persistent --gallery flag.
func loadConfig() *config.Config {
	cfg := config.Load()
	if galleryPath != "" {
		cfg.Gallery.Path = galleryPath
	}
	return cfg
}

// loadGallery creates the gallery and loads its persisted entries.
func loadGallery(cfg *config.Config) *gallery.Gallery {
	g := gallery.New(cfg.Gallery.Path)
	g.Load()
	return g
}

// newExtractor creates the embedding service client.
func newExtractor(cfg *config.Config) *extractor.Client {
	return extractor.NewClient(extractor.Options{
		BaseURL:           cfg.Embedding.URL,
		Timeout:           cfg.Embedding.Timeout(),
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		MaxImageSize:      cfg.Embedding.MaxImageSize,
	})
}

// openRecorder returns the PostgreSQL recorder when DATABASE_URL is set and the
// CSV recorder otherwise. The returned close function is never nil.
func openRecorder(ctx context.Context, cfg *config.Config) (attendance.Recorder, func(), error) {
	if cfg.Database.URL == "" {
		return attendance.NewCSVRecorder(cfg.Attendance.LogPath), func() {}, nil
	}

	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return postgres.NewAttendanceRepository(pool), func() { pool.Close() }, nil
}

// newService wires extractor, gallery and recorder into a recognition service.
func newService(cfg *config.Config, g *gallery.Gallery, recorder attendance.Recorder) *recognition.Service {
	return recognition.NewService(newExtractor(cfg), g, recorder, recognition.Options{
		Threshold:      cfg.Recognition.MatchThreshold,
		DefaultAddress: cfg.Attendance.DefaultAddress,
		NoMatchMessage: cfg.Recognition.NoMatchMessage,
	})
}
