// Package attendance records the outcome of every verification attempt.
package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Verification outcomes written to the log.
const (
	StatusSuccess = "Success"
	StatusFail    = "Fail"
)

// UnknownUser is logged as the user of a failed verification.
const UnknownUser = "Unknown"

// TimestampLayout is the timestamp format used by the CSV log.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is a single attendance log entry.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	Address   string    `json:"address"`
	Score     float64   `json:"score"`
	Embedding []float32 `json:"-"` // query embedding, kept only by backends that store vectors
}

// NewRecord creates a record stamped with the current time.
func NewRecord(userID, status, address string, score float64) Record {
	return Record{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		UserID:    userID,
		Status:    status,
		Address:   address,
		Score:     score,
	}
}

// Recorder appends attendance records to durable storage.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Counter is implemented by recorders that can count a user's successful
// check-ins.
type Counter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}
