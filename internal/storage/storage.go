package storage

import (
	"context"
	"errors"

	"github.com/kdimtricp/shottime/internal/models"
)

var ErrPermissionDenied = errors.New("directory permission denied")

// DirectoryHandle is a user-chosen output directory.
type DirectoryHandle interface {
	Name() string
	QueryPermission(ctx context.Context) models.PermissionState
	RequestPermission(ctx context.Context) models.PermissionState
	// WriteFile never replaces an existing file. It returns the name the
	// data was actually written under.
	WriteFile(ctx context.Context, name string, data []byte) (string, error)
}

// Prompter asks the user to confirm access to a directory.
type Prompter interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
}

// StaticPrompter answers every prompt the same way.
type StaticPrompter bool

func (p StaticPrompter) Confirm(ctx context.Context, title, message string) (bool, error) {
	return bool(p), nil
}
