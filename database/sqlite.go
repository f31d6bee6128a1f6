package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB implements the Database interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database instance
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %v", err)
	}

	if err := initTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %v", err)
	}

	return &SQLiteDB{db: db}, nil
}

// initTables creates the necessary tables if they don't exist
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			variant TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			status TEXT NOT NULL,
			dates INTEGER DEFAULT 0,
			built INTEGER DEFAULT 0,
			reused INTEGER DEFAULT 0,
			skipped INTEGER DEFAULT 0,
			error_message TEXT
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS segment_encodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			date TEXT NOT NULL,
			segment_name TEXT NOT NULL,
			status TEXT NOT NULL,
			skip_reason TEXT,
			audio_source TEXT,
			duration REAL DEFAULT 0,
			output_path TEXT,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS date_outputs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			date TEXT NOT NULL,
			output_path TEXT NOT NULL,
			size_bytes INTEGER DEFAULT 0,
			upload_url TEXT,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_segment_encodes_run ON segment_encodes (run_id)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_date_outputs_run ON date_outputs (run_id)`)
	return err
}

// CreateRun inserts a new run record
func (s *SQLiteDB) CreateRun(run Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, variant, started_at, finished_at, status, dates, built, reused, skipped, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Variant, run.StartedAt, run.FinishedAt, run.Status,
		run.Dates, run.Built, run.Reused, run.Skipped, run.Error)
	if err != nil {
		return fmt.Errorf("failed to create run: %v", err)
	}
	return nil
}

// FinishRun closes out a run with its final status and counters
func (s *SQLiteDB) FinishRun(id, status string, dates, built, reused, skipped int, errMsg string) error {
	_, err := s.db.Exec(`
		UPDATE runs SET finished_at = CURRENT_TIMESTAMP, status = ?, dates = ?, built = ?, reused = ?, skipped = ?, error_message = ?
		WHERE id = ?
	`, status, dates, built, reused, skipped, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %v", id, err)
	}
	return nil
}

// RecordSegmentEncode inserts one segment outcome
func (s *SQLiteDB) RecordSegmentEncode(enc SegmentEncode) error {
	_, err := s.db.Exec(`
		INSERT INTO segment_encodes (run_id, date, segment_name, status, skip_reason, audio_source, duration, output_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, enc.RunID, enc.Date, enc.SegmentName, enc.Status, enc.SkipReason,
		enc.AudioSource, enc.Duration, enc.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to record segment encode: %v", err)
	}
	return nil
}

// RecordDateOutput inserts one final artifact record
func (s *SQLiteDB) RecordDateOutput(out DateOutput) error {
	_, err := s.db.Exec(`
		INSERT INTO date_outputs (run_id, date, output_path, size_bytes, upload_url, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, out.RunID, out.Date, out.OutputPath, out.SizeBytes, out.UploadURL)
	if err != nil {
		return fmt.Errorf("failed to record date output: %v", err)
	}
	return nil
}

// UpdateDateOutputUpload stores the public URL after a successful upload
func (s *SQLiteDB) UpdateDateOutputUpload(runID, date, url string) error {
	_, err := s.db.Exec(`
		UPDATE date_outputs SET upload_url = ? WHERE run_id = ? AND date = ?
	`, url, runID, date)
	if err != nil {
		return fmt.Errorf("failed to update upload URL for %s/%s: %v", runID, date, err)
	}
	return nil
}

// ListSegmentEncodes returns every segment outcome for a run in insert order
func (s *SQLiteDB) ListSegmentEncodes(runID string) ([]SegmentEncode, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, date, segment_name, status, skip_reason, audio_source, duration, output_path, created_at
		FROM segment_encodes WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list segment encodes: %v", err)
	}
	defer rows.Close()

	var result []SegmentEncode
	for rows.Next() {
		var enc SegmentEncode
		var skipReason, audioSource, outputPath sql.NullString
		if err := rows.Scan(&enc.ID, &enc.RunID, &enc.Date, &enc.SegmentName, &enc.Status,
			&skipReason, &audioSource, &enc.Duration, &outputPath, &enc.CreatedAt); err != nil {
			return nil, err
		}
		enc.SkipReason = skipReason.String
		enc.AudioSource = audioSource.String
		enc.OutputPath = outputPath.String
		result = append(result, enc)
	}
	return result, rows.Err()
}

// ListDateOutputs returns every final artifact for a run in insert order
func (s *SQLiteDB) ListDateOutputs(runID string) ([]DateOutput, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, date, output_path, size_bytes, upload_url, created_at
		FROM date_outputs WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list date outputs: %v", err)
	}
	defer rows.Close()

	var result []DateOutput
	for rows.Next() {
		var out DateOutput
		var uploadURL sql.NullString
		if err := rows.Scan(&out.ID, &out.RunID, &out.Date, &out.OutputPath,
			&out.SizeBytes, &uploadURL, &out.CreatedAt); err != nil {
			return nil, err
		}
		out.UploadURL = uploadURL.String
		result = append(result, out)
	}
	return result, rows.Err()
}

// Close closes the underlying database handle
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
