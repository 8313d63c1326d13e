package database

import (
	"testing"
	"time"

	"github.com/kdimtricp/shottime/internal/models"
)

func TestMigratorUpIsIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	migrator := NewMigrator(db.Conn())
	if err := migrator.Up(); err != nil {
		t.Fatalf("Second Up failed: %v", err)
	}

	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		t.Fatalf("GetAppliedMigrations failed: %v", err)
	}
	for _, m := range Migrations() {
		if !applied[m.Version] {
			t.Errorf("Migration %s_%s not applied", m.Version, m.Name)
		}
	}
}

func TestCaptureRepositoryListRecent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCaptureRepository(db)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		c := &models.Capture{
			ID:         name,
			Filename:   name,
			Method:     models.SavedAsDownload,
			Width:      1920,
			Height:     1080,
			Size:       int64(100 + i),
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.InsertCapture(c); err != nil {
			t.Fatalf("InsertCapture(%s) failed: %v", name, err)
		}
	}

	captures, err := repo.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(captures) != 2 {
		t.Fatalf("Expected 2 captures, got %d", len(captures))
	}
	if captures[0].Filename != "c.png" || captures[1].Filename != "b.png" {
		t.Errorf("Expected newest first, got %s, %s", captures[0].Filename, captures[1].Filename)
	}
	if captures[0].Method != models.SavedAsDownload || captures[0].Width != 1920 {
		t.Errorf("Unexpected capture %+v", captures[0])
	}
}
