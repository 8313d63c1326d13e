package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

const DefaultTimeURL = "https://worldtimeapi.org/api/timezone/Asia/Seoul"

// timestampFields lists the JSON fields accepted as the remote timestamp, in priority order.
var timestampFields = []string{"datetime", "dateTime", "utc_datetime", "currentDateTime"}

// Synchronizer corrects the local clock by a fixed offset measured once against a remote time service.
type Synchronizer struct {
	url        string
	httpClient *http.Client
	loc        *time.Location
	now        func() time.Time

	mu     sync.RWMutex
	offset time.Duration
	synced bool
}

func NewSynchronizer(url string, httpClient *http.Client, loc *time.Location) *Synchronizer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Synchronizer{
		url:        url,
		httpClient: httpClient,
		loc:        loc,
		now:        time.Now,
	}
}

// Sync fetches the remote time and stores offset = remote - local.
// On any failure the offset stays zero; the returned error is informational only.
func (s *Synchronizer) Sync(ctx context.Context) error {
	remote, err := s.fetch(ctx)
	if err != nil {
		log.Printf("[CLOCK] Warning: time sync failed, using local clock: %v", err)
		s.setOffset(0, false)
		return err
	}

	local := s.now()
	offset := remote.Sub(local)
	s.setOffset(offset, true)

	log.Printf("[CLOCK] Time synchronized: remote=%s local=%s offset=%s",
		remote.Format(time.RFC3339Nano), local.Format(time.RFC3339Nano), offset)
	return nil
}

// SyncAsync runs Sync in the background so startup never waits on the network.
func (s *Synchronizer) SyncAsync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Sync(ctx)
	}()
	return done
}

func (s *Synchronizer) fetch(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("time service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read response: %w", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for _, field := range timestampFields {
		raw, ok := payload[field].(string)
		if !ok || raw == "" {
			continue
		}
		return parseTimestamp(raw, s.loc)
	}
	return time.Time{}, fmt.Errorf("no timestamp field in response")
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	// timeapi.io style: local wall time without zone designator
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

func (s *Synchronizer) setOffset(offset time.Duration, synced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
	s.synced = synced
}

func (s *Synchronizer) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

func (s *Synchronizer) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// Now returns the corrected time in the configured location.
func (s *Synchronizer) Now() time.Time {
	return s.now().Add(s.Offset()).In(s.loc)
}

func (s *Synchronizer) Location() *time.Location {
	return s.loc
}

// LoadLocation resolves name, falling back to the local zone.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[CLOCK] Warning: unknown timezone %q, using local: %v", name, err)
		return time.Local
	}
	return loc
}
