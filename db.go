package cronkite

import (
	"context"
	"database/sql"
	_ "embed"
	"sync"
	"time"

	"github.com/tailscale/squibble"
	_ "modernc.org/sqlite"
)

//go:embed db/latest_schema.sql
var dbSchema string

var schema = &squibble.Schema{
	Current: dbSchema,
}

type DB struct {
	mu sync.Mutex
	db *sql.DB

	filepath string
}

// Report is an archive row for a saved news report. The text file written at
// save time remains the canonical copy, the row is bookkeeping for the
// archive views.
type Report struct {
	Id               int
	Path             string
	Content          string
	Backend          string
	Model            string
	Transcript       string
	ImageDescription string
	Revisions        int
	CreatedAt        time.Time
}

func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.db.Close()
}

func NewDB(ctx context.Context, fname string) (*DB, error) {
	// Open the DB but flip on the cleaner timestamps from Go
	sqldb, err := sql.Open("sqlite", fname+"?_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	if err := sqldb.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := schema.Apply(ctx, sqldb); err != nil {
		return nil, err
	}

	return &DB{db: sqldb, filepath: fname}, nil
}

// InsertReport records a saved report and returns the Report model with its
// assigned id.
func (db *DB) InsertReport(ctx context.Context, r *Report) (*Report, error) {
	res, err := db.db.ExecContext(ctx, `
		INSERT INTO reports
		(path, content, backend, model, transcript, image_description, revisions, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.Path, r.Content, r.Backend, r.Model, r.Transcript, r.ImageDescription, r.Revisions, r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	r.Id = int(id)

	return r, nil
}

// GetReport retrieves a single archived report by id.
func (db *DB) GetReport(ctx context.Context, id int) (*Report, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, path, content, backend, model, transcript, image_description, revisions, created_at
		FROM reports
		WHERE id=?`, id)
	if row.Err() != nil {
		return nil, row.Err()
	}

	r := &Report{}
	var transcript, description sql.NullString
	err := row.Scan(
		&r.Id,
		&r.Path,
		&r.Content,
		&r.Backend,
		&r.Model,
		&transcript,
		&description,
		&r.Revisions,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if transcript.Valid {
		r.Transcript = transcript.String
	}
	if description.Valid {
		r.ImageDescription = description.String
	}

	return r, nil
}

// ListReports returns all archived reports, newest first.
func (db *DB) ListReports(ctx context.Context) ([]*Report, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, path, content, backend, model, transcript, image_description, revisions, created_at
		FROM reports
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		r := &Report{}

		var transcript, description sql.NullString
		err := rows.Scan(
			&r.Id,
			&r.Path,
			&r.Content,
			&r.Backend,
			&r.Model,
			&transcript,
			&description,
			&r.Revisions,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if transcript.Valid {
			r.Transcript = transcript.String
		}
		if description.Valid {
			r.ImageDescription = description.String
		}

		reports = append(reports, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return reports, nil
}

// CountReports returns the number of archived reports.
func (db *DB) CountReports(ctx context.Context) (int, error) {
	row := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`)
	if row.Err() != nil {
		return 0, row.Err()
	}

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}

	return n, nil
}
