package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/pgvector/pgvector-go"
)

// AttendanceRepository stores attendance records, including the query
// embedding of each verification attempt.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

var (
	_ attendance.Recorder = (*AttendanceRepository)(nil)
	_ attendance.Counter  = (*AttendanceRepository)(nil)
)

// Record inserts a single attendance record.
func (r *AttendanceRepository) Record(ctx context.Context, rec attendance.Record) error {
	var embedding any
	if len(rec.Embedding) > 0 {
		embedding = pgvector.NewVector(rec.Embedding)
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (id, recorded_at, user_id, status, address, score, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Timestamp, rec.UserID, rec.Status, rec.Address, rec.Score, embedding)
	if err != nil {
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (r *AttendanceRepository) Recent(ctx context.Context, limit int) ([]attendance.Record, error) {
	query := `
		SELECT id, recorded_at, user_id, status, address, score, embedding
		FROM attendance
		ORDER BY recorded_at DESC, id
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance records: %w", err)
	}
	defer rows.Close()

	records := []attendance.Record{}
	for rows.Next() {
		rec, err := scanAttendanceRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// CountByUser returns the number of successful check-ins for a user.
func (r *AttendanceRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance WHERE user_id = $1 AND status = $2",
		userID, attendance.StatusSuccess,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance records: %w", err)
	}
	return count, nil
}

func scanAttendanceRow(rows *sql.Rows) (attendance.Record, error) {
	var rec attendance.Record
	var embedding sql.Null[pgvector.Vector]

	if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.UserID, &rec.Status, &rec.Address, &rec.Score, &embedding); err != nil {
		return rec, fmt.Errorf("scan attendance record: %w", err)
	}
	if embedding.Valid {
		rec.Embedding = embedding.V.Slice()
	}
	return rec, nil
}
