// Package recognition matches uploaded faces against the enrolled gallery and
// records attendance. It is shared between the CLI commands and web handlers.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// ErrEmptyUserID is returned by Register and Enroll for a blank label.
var ErrEmptyUserID = errors.New("user id is required")

// Extractor turns an image into the embedding of its most prominent face.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}

// Options configures a Service.
type Options struct {
	Threshold      float64 // a score must be strictly greater to match
	DefaultAddress string  // used when a verification carries no address
	NoMatchMessage string  // printf format taking the score, constants.MsgNoMatch when empty
}

// Service orchestrates extractor, gallery and attendance recorder.
type Service struct {
	extractor Extractor
	gallery   *gallery.Gallery
	recorder  attendance.Recorder
	opts      Options
}

// NewService creates a recognition service. recorder may be nil, in which
// case verifications are not logged.
func NewService(ext Extractor, g *gallery.Gallery, recorder attendance.Recorder, opts Options) *Service {
	return &Service{extractor: ext, gallery: g, recorder: recorder, opts: opts}
}

// Gallery returns the gallery the service searches.
func (s *Service) Gallery() *gallery.Gallery {
	return s.gallery
}

// Threshold returns the configured match threshold.
func (s *Service) Threshold() float64 {
	return s.opts.Threshold
}

// VerifyResult is the outcome of one verification.
type VerifyResult struct {
	IsMatch    bool
	UserID     string // matched identity, empty when IsMatch is false
	BestUserID string // closest identity regardless of threshold
	Score      float64
	Address    string
	Message    string // client-facing verdict
}

// Verify extracts the face embedding from image, searches the gallery and
// records the attempt. Extraction errors are returned unchanged so callers can
// test them with errors.Is against extractor.ErrInvalidImage and
// extractor.ErrNoFace. Recording failures are logged only.
func (s *Service) Verify(ctx context.Context, image []byte, address string) (*VerifyResult, error) {
	if strings.TrimSpace(address) == "" {
		address = s.opts.DefaultAddress
	}

	embedding, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return nil, err
	}

	match, found := s.gallery.Search(embedding)
	result := &VerifyResult{
		BestUserID: match.UserID,
		Score:      match.Score,
		Address:    address,
	}
	if found && match.Score > s.opts.Threshold {
		result.IsMatch = true
		result.UserID = match.UserID
		result.Message = constants.MsgSuccess
	} else {
		result.Message = s.noMatchMessage(match.Score)
	}

	log.Printf("Verification address: %s", address)
	log.Printf("Verification max score: %.4f (threshold %.2f)", result.Score, s.opts.Threshold)
	log.Printf("Verification closest user: %q", result.BestUserID)
	log.Printf("Verification result: match=%t", result.IsMatch)

	s.record(ctx, result, embedding)
	return result, nil
}

func (s *Service) noMatchMessage(score float64) string {
	format := s.opts.NoMatchMessage
	if format == "" {
		format = constants.MsgNoMatch
	}
	if !strings.Contains(format, "%") {
		return format
	}
	return fmt.Sprintf(format, score)
}

func (s *Service) record(ctx context.Context, result *VerifyResult, embedding []float32) {
	if s.recorder == nil {
		return
	}

	userID, status := attendance.UnknownUser, attendance.StatusFail
	if result.IsMatch {
		userID, status = result.UserID, attendance.StatusSuccess
	}
	rec := attendance.NewRecord(userID, status, result.Address, result.Score)
	rec.Embedding = embedding

	if err := s.recorder.Record(ctx, rec); err != nil {
		log.Printf("Failed to record attendance for %s: %v", userID, err)
	}
}

// Enroll extracts the embedding of image and adds it to the gallery under
// userID without saving.
func (s *Service) Enroll(ctx context.Context, userID string, image []byte) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}

	embedding, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return err
	}
	s.gallery.Add(userID, embedding)
	return nil
}

// Register enrolls image under userID and persists the gallery immediately.
func (s *Service) Register(ctx context.Context, userID string, image []byte) error {
	if err := s.Enroll(ctx, userID, image); err != nil {
		return err
	}
	if err := s.gallery.Save(); err != nil {
		return fmt.Errorf("saving gallery after registering %s: %w", userID, err)
	}
	log.Printf("Registered %s (%d entries)", userID, s.gallery.Len())
	return nil
}
