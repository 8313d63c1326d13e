package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kdimtricp/shottime/internal/models"
)

// LocalDirectory is a DirectoryHandle on the local filesystem. A grant
// lasts for the life of the process and is never persisted.
type LocalDirectory struct {
	basePath string
	prompter Prompter

	mu    sync.Mutex
	state models.PermissionState
}

func NewLocalDirectory(basePath string, prompter Prompter) (*LocalDirectory, error) {
	if basePath == "" {
		return nil, fmt.Errorf("directory path is empty")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory: %w", err)
	}
	return &LocalDirectory{
		basePath: abs,
		prompter: prompter,
		state:    models.PermissionPrompt,
	}, nil
}

func (d *LocalDirectory) Name() string {
	return d.basePath
}

func (d *LocalDirectory) QueryPermission(ctx context.Context) models.PermissionState {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == models.PermissionGranted && !writable(d.basePath) {
		d.state = models.PermissionPrompt
	}
	return d.state
}

func (d *LocalDirectory) RequestPermission(ctx context.Context) models.PermissionState {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == models.PermissionGranted {
		return d.state
	}
	if d.prompter == nil {
		d.state = models.PermissionDenied
		return d.state
	}

	ok, err := d.prompter.Confirm(ctx, "Screenshot folder", fmt.Sprintf("Allow saving screenshots to %s?", d.basePath))
	if err != nil {
		log.Printf("[STORAGE] Permission prompt failed: %v", err)
		return d.state
	}
	if !ok {
		d.state = models.PermissionDenied
		return d.state
	}

	if err := os.MkdirAll(d.basePath, 0755); err != nil {
		log.Printf("[STORAGE] Failed to create %s: %v", d.basePath, err)
		d.state = models.PermissionDenied
		return d.state
	}
	if !writable(d.basePath) {
		d.state = models.PermissionDenied
		return d.state
	}
	d.state = models.PermissionGranted
	return d.state
}

const maxNameAttempts = 1000

func (d *LocalDirectory) WriteFile(ctx context.Context, name string, data []byte) (string, error) {
	if d.QueryPermission(ctx) != models.PermissionGranted {
		return "", ErrPermissionDenied
	}

	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}

	var (
		dst      *os.File
		fullPath string
	)
	for i := 0; ; i++ {
		fullPath = filepath.Join(d.basePath, clean)
		dst, err = os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || i >= maxNameAttempts {
			return "", fmt.Errorf("failed to create file: %w", err)
		}
		clean = bumpSuffix(clean)
	}
	if clean != name {
		log.Printf("[STORAGE] %s exists, saving as %s", name, clean)
	}

	if _, err := dst.Write(data); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return clean, nil
}

// bumpSuffix turns "a.png" into "a(1).png" and "a(1).png" into "a(2).png".
func bumpSuffix(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	n := 1
	if open := strings.LastIndexByte(base, '('); open >= 0 && strings.HasSuffix(base, ")") {
		if k, err := strconv.Atoi(base[open+1 : len(base)-1]); err == nil && k >= 0 {
			base = base[:open]
			n = k + 1
		}
	}
	return fmt.Sprintf("%s(%d)%s", base, n, ext)
}

func cleanName(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == "." || strings.Contains(clean, "..") || strings.ContainsAny(clean, `/\`) {
		return "", fmt.Errorf("invalid path")
	}
	return clean, nil
}

func writable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.CreateTemp(dir, ".shottime-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
