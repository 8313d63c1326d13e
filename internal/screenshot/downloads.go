package screenshot

import (
	"context"
	"net/url"

	"github.com/kdimtricp/shottime/internal/notify"
	"github.com/kdimtricp/shottime/internal/storage"
)

// DownloadsPath is where the dashboard fetches queued downloads.
const DownloadsPath = "/api/downloads/"

// Downloader queues a capture and tells the dashboard to fetch it.
type Downloader struct {
	queue  *storage.DownloadQueue
	events notify.EventPublisher
}

func NewDownloader(queue *storage.DownloadQueue, events notify.EventPublisher) *Downloader {
	return &Downloader{queue: queue, events: events}
}

func (d *Downloader) Download(ctx context.Context, name string, data []byte) error {
	if err := d.queue.Put(name, data); err != nil {
		return err
	}
	if d.events != nil {
		d.events.Publish(notify.NewEvent(notify.EventDownload, map[string]string{
			"filename": name,
			"url":      DownloadsPath + url.PathEscape(name),
		}))
	}
	return nil
}
