package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"thumbforge-client/internal/model"

	_ "modernc.org/sqlite"
)

// Recorder keeps a local log of generation attempts in SQLite.
type Recorder struct {
	db *sql.DB
}

func Open(path string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	// one connection keeps writes ordered and in-memory databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history: %w", err)
	}

	r := &Recorder{db: db}
	if err := r.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}
	return r, nil
}

func (r *Recorder) createTables() error {
	queries := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS generations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			platform TEXT NOT NULL,
			focus TEXT NOT NULL,
			artifact_uri TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error_message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Start records a request as processing.
func (r *Recorder) Start(ctx context.Context, req model.GenerationRequest) error {
	query := `
	INSERT INTO generations (request_id, category, platform, focus, status)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.Form.DisplayCategory(), req.Form.Platform, req.Form.Focus, model.StatusProcessing)
	return err
}

// Finish stores the outcome. A nil cause marks success.
func (r *Recorder) Finish(ctx context.Context, requestID, artifactURI string, cause error) error {
	status := model.StatusSuccess
	var errorMessage *string
	if cause != nil {
		status = model.StatusFailed
		msg := cause.Error()
		errorMessage = &msg
	}

	query := `
	UPDATE generations
	SET status = ?, artifact_uri = ?, error_message = ?
	WHERE request_id = ?
	`
	_, err := r.db.ExecContext(ctx, query, status, artifactURI, errorMessage, requestID)
	return err
}

func (r *Recorder) Get(ctx context.Context, requestID string) (*model.Generation, error) {
	query := `
	SELECT id, request_id, category, platform, focus, artifact_uri, status, error_message, created_at
	FROM generations
	WHERE request_id = ?
	`
	var gen model.Generation
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&gen.ID,
		&gen.RequestID,
		&gen.Category,
		&gen.Platform,
		&gen.Focus,
		&gen.ArtifactURI,
		&gen.Status,
		&gen.ErrorMessage,
		&gen.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &gen, nil
}

func (r *Recorder) List(ctx context.Context, limit int) ([]model.Generation, error) {
	query := `
	SELECT id, request_id, category, platform, focus, artifact_uri, status, error_message, created_at
	FROM generations
	ORDER BY id DESC
	LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var generations []model.Generation
	for rows.Next() {
		var gen model.Generation
		if err := rows.Scan(
			&gen.ID,
			&gen.RequestID,
			&gen.Category,
			&gen.Platform,
			&gen.Focus,
			&gen.ArtifactURI,
			&gen.Status,
			&gen.ErrorMessage,
			&gen.CreatedAt,
		); err != nil {
			return nil, err
		}
		generations = append(generations, gen)
	}
	return generations, rows.Err()
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
