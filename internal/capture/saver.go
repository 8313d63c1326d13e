package capture

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/kdimtricp/shottime/internal/models"
	"github.com/kdimtricp/shottime/internal/storage"
)

// Downloader hands an encoded file to the user as a regular download.
type Downloader interface {
	Download(ctx context.Context, name string, data []byte) error
}

// Saver writes captures to the chosen directory when permitted and falls
// back to a download otherwise.
type Saver struct {
	mu        sync.RWMutex
	dir       storage.DirectoryHandle
	downloads Downloader
}

func NewSaver(dir storage.DirectoryHandle, downloads Downloader) *Saver {
	return &Saver{dir: dir, downloads: downloads}
}

func (s *Saver) SetDirectory(dir storage.DirectoryHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dir = dir
}

func (s *Saver) Directory() storage.DirectoryHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

// Save returns the name the file was stored under, which differs from name
// when the directory already holds a file by that name.
func (s *Saver) Save(ctx context.Context, name string, data []byte) (string, models.SaveMethod, error) {
	if dir := s.Directory(); dir != nil {
		saved, err := s.saveToDirectory(ctx, dir, name, data)
		if err == nil {
			return saved, models.SavedToDirectory, nil
		}
		log.Printf("[CAPTURE] Falling back to download for %s: %v", name, err)
	}

	if s.downloads == nil {
		return "", "", fmt.Errorf("no download target for %s", name)
	}
	if err := s.downloads.Download(ctx, name, data); err != nil {
		return "", "", fmt.Errorf("failed to download %s: %w", name, err)
	}
	return name, models.SavedAsDownload, nil
}

func (s *Saver) saveToDirectory(ctx context.Context, dir storage.DirectoryHandle, name string, data []byte) (string, error) {
	state := dir.QueryPermission(ctx)
	if state == models.PermissionPrompt {
		state = dir.RequestPermission(ctx)
	}
	if state != models.PermissionGranted {
		return "", fmt.Errorf("%s: %w", dir.Name(), storage.ErrPermissionDenied)
	}
	return dir.WriteFile(ctx, name, data)
}
