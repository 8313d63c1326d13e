package database

import (
	"fmt"

	"github.com/kdimtricp/shottime/internal/models"
)

type CaptureRepository struct {
	db *DB
}

func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

func (r *CaptureRepository) InsertCapture(capture *models.Capture) error {
	_, err := r.db.conn.Exec(`
		INSERT INTO captures (id, filename, method, width, height, size, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		capture.ID, capture.Filename, string(capture.Method),
		capture.Width, capture.Height, capture.Size, capture.CapturedAt)
	if err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}
	return nil
}

func (r *CaptureRepository) ListRecent(limit int) ([]models.Capture, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.conn.Query(`
		SELECT id, filename, method, width, height, size, captured_at
		FROM captures ORDER BY captured_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var captures []models.Capture
	for rows.Next() {
		var c models.Capture
		var method string
		if err := rows.Scan(&c.ID, &c.Filename, &method, &c.Width, &c.Height, &c.Size, &c.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		c.Method = models.SaveMethod(method)
		captures = append(captures, c)
	}
	return captures, rows.Err()
}
