package attendance

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var csvHeader = []string{"Timestamp", "UserID", "Status", "Address"}

// CSVRecorder appends records to a CSV file, writing the header when the file
// is created.
type CSVRecorder struct {
	path string
	mu   sync.Mutex
}

// NewCSVRecorder creates a recorder writing to path.
func NewCSVRecorder(path string) *CSVRecorder {
	return &CSVRecorder{path: path}
}

// Path returns the log file location.
func (r *CSVRecorder) Path() string {
	return r.path
}

// Record appends one row: Timestamp, UserID, Status, Address.
func (r *CSVRecorder) Record(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, statErr := os.Stat(r.path)
	writeHeader := errors.Is(statErr, os.ErrNotExist) || (statErr == nil && info.Size() == 0)

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to open attendance log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write attendance header: %w", err)
		}
	}

	row := []string{rec.Timestamp.Format(TimestampLayout), rec.UserID, rec.Status, rec.Address}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write attendance record: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush attendance log: %w", err)
	}
	return nil
}

// Recent reads the log and returns the last limit rows, newest first.
// The CSV log carries no score or ID, so those fields stay zero.
func (r *CSVRecorder) Recent(_ context.Context, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readLocked()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]Record, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	return out, nil
}

// CountByUser returns the number of successful check-ins logged for userID.
func (r *CSVRecorder) CountByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.readLocked()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range records {
		if rec.UserID == userID && rec.Status == StatusSuccess {
			count++
		}
	}
	return count, nil
}

// readLocked parses every row of the log in file order. A missing file is an
// empty log. The caller must hold r.mu.
func (r *CSVRecorder) readLocked() ([]Record, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open attendance log: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(csvHeader)

	var records []Record
	first := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse attendance log: %w", err)
		}
		if first {
			first = false
			if row[0] == csvHeader[0] {
				continue
			}
		}

		ts, err := time.ParseInLocation(TimestampLayout, row[0], time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q in attendance log: %w", row[0], err)
		}
		records = append(records, Record{Timestamp: ts, UserID: row[1], Status: row[2], Address: row[3]})
	}
	return records, nil
}
