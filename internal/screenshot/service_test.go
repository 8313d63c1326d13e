package screenshot

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/kdimtricp/shottime/internal/ai"
	"github.com/kdimtricp/shottime/internal/capture"
	"github.com/kdimtricp/shottime/internal/countdown"
	"github.com/kdimtricp/shottime/internal/models"
	"github.com/kdimtricp/shottime/internal/notify"
	"github.com/kdimtricp/shottime/internal/schedule"
	"github.com/kdimtricp/shottime/internal/storage"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type recorder struct {
	mu            sync.Mutex
	tones         []models.Tone
	notifications []notify.Notification
	events        []notify.Event
	permission    models.PermissionState
}

func (r *recorder) PlayTone(ctx context.Context, tone models.Tone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tones = append(r.tones, tone)
}

func (r *recorder) Permission() models.PermissionState { return r.permission }

func (r *recorder) Notify(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *recorder) Publish(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(t notify.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) toneCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tones)
}

type fakeStore struct {
	slots    []models.TimeSlot
	active   *bool
	settings *models.Settings
	resetDay string
	saves    int
}

func (f *fakeStore) SaveSlots(slots []models.TimeSlot) error {
	f.slots = slots
	f.saves++
	return nil
}

func (f *fakeStore) SaveActive(active bool) error {
	f.active = &active
	return nil
}

func (f *fakeStore) SaveSettings(settings models.Settings) error {
	f.settings = &settings
	return nil
}

func (f *fakeStore) SaveResetDay(day string) error {
	f.resetDay = day
	return nil
}

type fakeStream struct{ stops int }

func (s *fakeStream) Grab(ctx context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 32, 32)), nil
}

func (s *fakeStream) Stop() { s.stops++ }

type fakeCapturer struct {
	mu    sync.Mutex
	opens int
	err   error
}

func (c *fakeCapturer) Open(ctx context.Context) (capture.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if c.err != nil {
		return nil, c.err
	}
	return &fakeStream{}, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, captureID string, img image.Image, opts ai.Options) *models.AnalysisReport {
	return &models.AnalysisReport{ID: "report", CaptureID: captureID}
}

func day(h, m, s int) time.Time {
	return time.Date(2024, 3, 5, h, m, s, 0, time.UTC)
}

type fixture struct {
	svc      *Service
	rec      *recorder
	store    *fakeStore
	capturer *fakeCapturer
	queue    *storage.DownloadQueue
}

func newFixture(slots []models.TimeSlot, active bool) *fixture {
	f := &fixture{
		rec:      &recorder{permission: models.PermissionGranted},
		store:    &fakeStore{},
		capturer: &fakeCapturer{},
		queue:    storage.NewDownloadQueue(10),
	}
	settings := models.DefaultSettings()
	settings.CaptureDelay = false

	f.svc = NewService(Config{
		Clock:     &fixedClock{now: day(10, 0, 0)},
		Schedule:  schedule.NewEngine(slots),
		Countdown: countdown.NewController(),
		Store:     f.store,
		Active:    active,
		Settings:  settings,
		ResetDay:  "2024-03-05",
		Capturer:  f.capturer,
		Saver:     capture.NewSaver(nil, NewDownloader(f.queue, f.rec)),
		Analyzer:  fakeAnalyzer{},
		Tones:     f.rec,
		Notifier:  f.rec,
		Events:    f.rec,
	})
	return f
}

func remaining(t *testing.T, svc *Service) int {
	t.Helper()
	state := svc.State().Countdown
	if state.Remaining == nil {
		t.Fatal("expected an active countdown")
	}
	return *state.Remaining
}

func TestScheduledCountdownEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture([]models.TimeSlot{{ID: 1, Time: "10:00", Enabled: true}}, true)

	f.svc.Tick(ctx, day(9, 59, 0))
	if got := remaining(t, f.svc); got != 60 {
		t.Fatalf("expected countdown of 60, got %d", got)
	}
	if !f.svc.Slots()[0].Triggered {
		t.Fatal("slot should be triggered when armed")
	}
	if f.store.saves == 0 || !f.store.slots[0].Triggered {
		t.Error("triggered slot should be persisted")
	}

	for sec := 1; sec < 30; sec++ {
		f.svc.Tick(ctx, day(9, 59, sec))
	}
	if len(f.rec.notifications) != 0 {
		t.Fatal("notification fired before 30 seconds remained")
	}

	f.svc.Tick(ctx, day(9, 59, 30))
	if got := remaining(t, f.svc); got != 30 {
		t.Fatalf("expected 30 remaining at 09:59:30, got %d", got)
	}
	f.svc.Wait()
	if len(f.rec.notifications) != 1 || f.rec.notifications[0].Tag != "screenshot-30s" {
		t.Fatalf("expected one 30s notification, got %v", f.rec.notifications)
	}

	for sec := 31; sec < 60; sec++ {
		f.svc.Tick(ctx, day(9, 59, sec))
	}
	if got := remaining(t, f.svc); got != 1 {
		t.Fatalf("expected 1 remaining at 09:59:59, got %d", got)
	}

	f.svc.Tick(ctx, day(10, 0, 0))
	if got := f.svc.State().Countdown; got.Phase != models.PhaseTerminal {
		t.Fatalf("expected terminal phase after the final tone, got %+v", got)
	}

	f.svc.Tick(ctx, day(10, 0, 1))
	state := f.svc.State()
	if state.Countdown.Phase != models.PhaseInactive || state.Countdown.Remaining != nil {
		t.Errorf("expected inactive countdown one tick later, got %+v", state.Countdown)
	}
	if !state.Slots[0].Triggered {
		t.Error("slot should stay triggered after the run")
	}

	// one tone at 30, ten for 10..1 and the final tone
	if got := f.rec.toneCount(); got != 12 {
		t.Errorf("expected 12 tones, got %d", got)
	}
	if len(f.rec.notifications) != 1 {
		t.Errorf("30s notification fired %d times", len(f.rec.notifications))
	}

	f.svc.Tick(ctx, day(10, 0, 2))
	if f.svc.State().Countdown.Remaining != nil {
		t.Error("triggered slot must not re-arm")
	}

	f.svc.MinuteTick(ctx, day(0, 0, 0).Add(24*time.Hour))
	if f.svc.Slots()[0].Triggered {
		t.Error("midnight should clear the trigger")
	}
}

func TestInactiveServiceDoesNotArm(t *testing.T) {
	f := newFixture([]models.TimeSlot{{ID: 1, Time: "10:00", Enabled: true}}, false)

	f.svc.Tick(context.Background(), day(9, 59, 0))
	if f.svc.State().Countdown.Remaining != nil {
		t.Error("inactive service must not arm")
	}
	if f.svc.Slots()[0].Triggered {
		t.Error("slot must stay untriggered")
	}
}

func TestInactiveServiceSilencesTestRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil, false)

	f.svc.TestCountdown()
	for i := 0; i <= 60; i++ {
		f.svc.Tick(ctx, day(12, 0, i%60))
	}

	if f.rec.toneCount() != 0 || len(f.rec.notifications) != 0 {
		t.Errorf("inactive service should stay silent, got %d tones", f.rec.toneCount())
	}
	if f.svc.State().Countdown.Phase != models.PhaseInactive {
		t.Error("run should still settle to inactive")
	}
}

func TestMidnightCancelsCountdown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil, true)

	f.svc.TestCountdown()
	f.svc.Tick(ctx, day(23, 59, 50))

	next := day(0, 0, 5).Add(24 * time.Hour)
	f.svc.MinuteTick(ctx, next)
	if f.svc.State().Countdown.Phase != models.PhaseInactive {
		t.Fatal("midnight should cancel the countdown")
	}
	if f.store.resetDay != "2024-03-06" {
		t.Errorf("expected reset day to be persisted, got %q", f.store.resetDay)
	}

	before := f.rec.toneCount()
	for i := 0; i < 60; i++ {
		f.svc.Tick(ctx, next.Add(time.Duration(1+i)*time.Second))
	}
	if f.rec.toneCount() != before {
		t.Error("cancelled run must not produce more tones")
	}
}

func TestMinuteTickClearsTriggersFromMissedDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture([]models.TimeSlot{{ID: 1, Time: "10:00", Enabled: true, Triggered: true}}, true)
	f.svc.cfg.Schedule.SetResetDay("2024-03-04")

	// Restarted mid-morning, long after midnight passed.
	f.svc.MinuteTick(ctx, day(9, 30, 0))
	if f.svc.Slots()[0].Triggered {
		t.Fatal("trigger from the previous day should be cleared")
	}
	if f.store.resetDay != "2024-03-05" || f.store.saves == 0 || f.store.slots[0].Triggered {
		t.Errorf("cleared slots and reset day should be persisted, got day %q slots %+v", f.store.resetDay, f.store.slots)
	}

	f.svc.Tick(ctx, day(9, 59, 0))
	if got := remaining(t, f.svc); got != 60 {
		t.Fatalf("expected the slot to arm again, got %d", got)
	}

	f.svc.MinuteTick(ctx, day(9, 59, 30))
	if !f.svc.Slots()[0].Triggered || f.svc.State().Countdown.Phase != models.PhaseRunning {
		t.Error("a second check on the same day must not reset")
	}
}

// gatedStore blocks the first slot save until release is closed.
type gatedStore struct {
	fakeStore
	mu      sync.Mutex
	calls   int
	last    []models.TimeSlot
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) SaveSlots(slots []models.TimeSlot) error {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()

	if first {
		close(g.entered)
		<-g.release
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = slots
	return nil
}

func TestSlotSavesKeepNewestSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture([]models.TimeSlot{
		{ID: 1, Time: "10:00", Enabled: true},
		{ID: 2, Time: "11:00", Enabled: true},
	}, true)
	store := &gatedStore{entered: make(chan struct{}), release: make(chan struct{})}
	f.svc.cfg.Store = store

	ticked := make(chan struct{})
	go func() {
		defer close(ticked)
		f.svc.Tick(ctx, day(9, 59, 0))
	}()
	<-store.entered

	toggled := make(chan struct{})
	go func() {
		defer close(toggled)
		if _, err := f.svc.ToggleSlot(2); err != nil {
			t.Errorf("ToggleSlot failed: %v", err)
		}
	}()
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	<-ticked
	<-toggled

	store.mu.Lock()
	defer store.mu.Unlock()
	live := f.svc.Slots()
	if len(store.last) != len(live) {
		t.Fatalf("expected %d persisted slots, got %+v", len(live), store.last)
	}
	for i := range live {
		if store.last[i] != live[i] {
			t.Errorf("persisted slot %d = %+v, live = %+v", i, store.last[i], live[i])
		}
	}
	if !live[0].Triggered || live[1].Enabled {
		t.Errorf("expected slot 1 triggered and slot 2 disabled, got %+v", live)
	}
}

type blockingNotifier struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (n *blockingNotifier) Permission() models.PermissionState { return models.PermissionGranted }

func (n *blockingNotifier) Notify(ctx context.Context, note notify.Notification) error {
	<-n.release
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func TestSlowNotificationDoesNotStallTicks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil, true)
	notifier := &blockingNotifier{release: make(chan struct{})}
	f.svc.cfg.Notifier = notifier

	f.svc.TestCountdown()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 31; i++ {
			f.svc.Tick(ctx, day(12, 0, i))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		close(notifier.release)
		t.Fatal("ticks stalled behind the 30 second notification")
	}
	if got := remaining(t, f.svc); got != 29 {
		t.Errorf("expected 29 remaining, got %d", got)
	}

	close(notifier.release)
	f.svc.Wait()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.calls != 1 {
		t.Errorf("expected one notification, got %d", notifier.calls)
	}
}

type syncedClock struct {
	fixedClock
	synced bool
}

func (c *syncedClock) Synced() bool { return c.synced }

func TestStateReportsClockSync(t *testing.T) {
	f := newFixture(nil, true)
	if f.svc.State().ClockSynced {
		t.Error("a plain clock should not report synced")
	}

	f.svc.cfg.Clock = &syncedClock{fixedClock: fixedClock{now: day(10, 0, 0)}, synced: true}
	if !f.svc.State().ClockSynced {
		t.Error("expected synced clock to be reported")
	}
}

func TestResetTriggersCancelsCountdown(t *testing.T) {
	ctx := context.Background()
	f := newFixture([]models.TimeSlot{{ID: 1, Time: "10:00", Enabled: true}}, true)

	f.svc.Tick(ctx, day(9, 59, 0))
	slots := f.svc.ResetTriggers()

	if slots[0].Triggered {
		t.Error("trigger should be cleared")
	}
	if f.svc.State().Countdown.Phase != models.PhaseInactive {
		t.Error("countdown should be cancelled")
	}
}

func TestTestCountdownIgnoresSchedule(t *testing.T) {
	f := newFixture([]models.TimeSlot{}, true)

	state := f.svc.TestCountdown()
	if state.Remaining == nil || *state.Remaining != countdown.TestSeconds {
		t.Fatalf("expected 60 second test run, got %+v", state)
	}
	if f.rec.count(notify.EventCountdown) == 0 {
		t.Error("countdown event should be published")
	}
}

func TestAutoCaptureAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil, true)
	f.svc.cfg.AutoCapture = true

	f.svc.TestCountdown()
	for i := 0; i <= countdown.TestSeconds; i++ {
		f.svc.Tick(ctx, day(12, 0, i%60))
	}
	f.svc.Wait()

	if f.capturer.opens != 1 {
		t.Fatalf("expected one automatic capture, got %d", f.capturer.opens)
	}
	if pending := f.queue.Pending(); len(pending) != 1 || pending[0] != "24-03-05-10-00.png" {
		t.Errorf("expected queued download, got %v", pending)
	}
	if f.rec.count(notify.EventDownload) != 1 || f.rec.count(notify.EventCapture) != 1 {
		t.Error("download and capture events should be published")
	}
	if f.rec.count(notify.EventAnalysis) != 1 {
		t.Error("analysis result should be published")
	}
}

func TestCaptureCancelledReportsMessage(t *testing.T) {
	f := newFixture(nil, true)
	f.capturer.err = capture.ErrCaptureCancelled

	_, err := f.svc.Capture(context.Background())
	if !errors.Is(err, capture.ErrCaptureCancelled) {
		t.Fatalf("expected ErrCaptureCancelled, got %v", err)
	}
	if f.rec.count(notify.EventError) != 1 {
		t.Error("a user-visible error should be published")
	}
	if len(f.queue.Pending()) != 0 {
		t.Error("nothing should be saved")
	}
}

func TestUpdateSettingsPersistsAndOpensDirectory(t *testing.T) {
	f := newFixture(nil, true)
	dir := t.TempDir()
	f.svc.cfg.Directories = func(path string) (storage.DirectoryHandle, error) {
		return storage.NewLocalDirectory(path, storage.StaticPrompter(true))
	}

	settings := f.svc.Settings()
	settings.SaveDirectory = dir
	settings.FaceDetection = false
	f.svc.UpdateSettings(settings)

	if f.store.settings == nil || f.store.settings.SaveDirectory != dir {
		t.Error("settings should be persisted")
	}

	c, err := f.svc.Capture(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Method != models.SavedToDirectory {
		t.Errorf("expected directory save, got %s", c.Method)
	}
	if f.svc.State().SaveTarget == "" {
		t.Error("state should report the save target")
	}
}

func TestSetActivePersists(t *testing.T) {
	f := newFixture(nil, false)
	f.svc.SetActive(true)

	if !f.svc.Active() || f.store.active == nil || !*f.store.active {
		t.Error("active flag should be set and persisted")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: capture.ErrBusy, want: "A capture or analysis is already in progress."},
		{err: capture.ErrCaptureCancelled, want: "Screen capture was cancelled. Nothing was saved."},
		{err: errors.New("boom"), want: "Screenshot failed: boom"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
