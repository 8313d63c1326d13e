package storage

import (
	"fmt"
	"sync"
	"time"
)

type Download struct {
	Name      string
	Data      []byte
	CreatedAt time.Time
}

// DownloadQueue holds encoded captures until the dashboard fetches them.
type DownloadQueue struct {
	mu    sync.Mutex
	items map[string]Download
	order []string
	limit int
}

func NewDownloadQueue(limit int) *DownloadQueue {
	if limit <= 0 {
		limit = 20
	}
	return &DownloadQueue{
		items: make(map[string]Download),
		limit: limit,
	}
}

func (q *DownloadQueue) Put(name string, data []byte) error {
	clean, err := cleanName(name)
	if err != nil {
		return fmt.Errorf("invalid download name %q: %w", name, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.items[clean]; !exists {
		q.order = append(q.order, clean)
	}
	q.items[clean] = Download{Name: clean, Data: data, CreatedAt: time.Now()}

	for len(q.order) > q.limit {
		oldest := q.order[0]
		q.order = q.order[1:]
		delete(q.items, oldest)
	}
	return nil
}

func (q *DownloadQueue) Get(name string) (Download, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	d, ok := q.items[name]
	return d, ok
}

// Pending returns the names still waiting, oldest first.
func (q *DownloadQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.order...)
}
