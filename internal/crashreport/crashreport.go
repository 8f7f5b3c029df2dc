// Package crashreport records unexpected failures so they can be inspected after the fact.
package crashreport

import (
	"database/sql"
	"errors"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
)

const defaultListLimit = 50

// Report is one recorded failure.
type Report struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists reports in the crash_reports table.
type Store struct {
	db  *sql.DB
	now func() time.Time
	log log.Interface
}

// NewStore creates a store backed by db.
func NewStore(db *sql.DB, logger log.Interface) (*Store, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if logger == nil {
		logger = log.Log
	}
	return &Store{db: db, now: time.Now, log: logger}, nil
}

// Report records err. Persistence failures are logged, never returned.
func (s *Store) Report(err error) {
	if err == nil {
		return
	}
	report := Report{
		ID:        uuid.NewString(),
		Message:   err.Error(),
		CreatedAt: s.now().UTC(),
	}
	entry := s.log.WithFields(log.Fields{"report": report.ID}).WithError(err)
	entry.Error("captured exception")

	_, dbErr := s.db.Exec(
		`INSERT INTO crash_reports (id, message, created_at) VALUES (?, ?, ?)`,
		report.ID, report.Message, report.CreatedAt.Unix(),
	)
	if dbErr != nil {
		entry.WithField("store_error", dbErr.Error()).Warn("failed to persist crash report")
	}
}

// List returns up to limit reports, newest first. A non-positive limit uses the default.
func (s *Store) List(limit int) ([]Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.Query(
		`SELECT id, message, created_at FROM crash_reports ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]Report, 0)
	for rows.Next() {
		var (
			r       Report
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Message, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// LogReporter only logs failures. It is used when no database is available.
type LogReporter struct {
	Log log.Interface
}

func (r LogReporter) Report(err error) {
	if err == nil {
		return
	}
	logger := r.Log
	if logger == nil {
		logger = log.Log
	}
	logger.WithError(err).Error("captured exception")
}
