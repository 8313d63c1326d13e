package screenshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kdimtricp/shottime/internal/capture"
	"github.com/kdimtricp/shottime/internal/countdown"
	"github.com/kdimtricp/shottime/internal/models"
	"github.com/kdimtricp/shottime/internal/notify"
	"github.com/kdimtricp/shottime/internal/schedule"
	"github.com/kdimtricp/shottime/internal/storage"
)

type Clock interface {
	Now() time.Time
}

// Store persists the user's configuration. Failures are logged, never fatal.
type Store interface {
	SaveSlots(slots []models.TimeSlot) error
	SaveActive(active bool) error
	SaveSettings(settings models.Settings) error
	SaveResetDay(day string) error
}

// DirectoryOpener turns a configured save path into a directory handle.
type DirectoryOpener func(path string) (storage.DirectoryHandle, error)

type Config struct {
	Clock     Clock
	Schedule  *schedule.Engine
	Countdown *countdown.Controller
	Store     Store

	Active   bool
	Settings models.Settings
	// ResetDay is the last day triggers were cleared for, as stored.
	ResetDay string

	Capturer    capture.DisplayCapturer
	Saver       *capture.Saver
	Namer       *capture.Namer
	Analyzer    capture.Analyzer
	Recorder    capture.CaptureRecorder
	Directories DirectoryOpener

	Tones    notify.ToneEmitter
	Notifier notify.SystemNotifier
	Events   notify.EventPublisher

	// AutoCapture takes a screenshot when a countdown reaches zero.
	AutoCapture bool
}

// Service is the single owner of the schedule and countdown state. Run
// drives it from two tickers; every other method is a user command.
type Service struct {
	cfg      Config
	pipeline *capture.Pipeline

	mu       sync.Mutex
	active   bool
	settings models.Settings
	// publishedIdle records that the inactive countdown state was already sent.
	publishedIdle bool

	background sync.WaitGroup

	// persistMu orders slot saves; savedVersion is the last version written.
	persistMu    sync.Mutex
	savedVersion uint64
}

func NewService(cfg Config) *Service {
	if cfg.Schedule == nil {
		cfg.Schedule = schedule.NewEngine(nil)
	}
	if cfg.Countdown == nil {
		cfg.Countdown = countdown.NewController()
	}
	if cfg.Events == nil {
		cfg.Events = discard{}
	}
	if cfg.Tones == nil {
		cfg.Tones = discard{}
	}
	if cfg.Saver == nil {
		cfg.Saver = capture.NewSaver(nil, nil)
	}
	if cfg.ResetDay != "" {
		cfg.Schedule.SetResetDay(cfg.ResetDay)
	}

	s := &Service{
		cfg:           cfg,
		active:        cfg.Active,
		settings:      cfg.Settings,
		publishedIdle: true,
	}

	s.pipeline = capture.NewPipeline(capture.Config{
		Capturer:   cfg.Capturer,
		Saver:      cfg.Saver,
		Namer:      cfg.Namer,
		Tones:      cfg.Tones,
		Analyzer:   cfg.Analyzer,
		Recorder:   cfg.Recorder,
		Settings:   s.Settings,
		Now:        cfg.Clock.Now,
		OnAnalysis: s.analysisDone,
	})

	s.openDirectory(cfg.Settings.SaveDirectory)
	return s
}

// Run ticks the service every second and checks for a day change every
// minute until ctx is done. The day check also runs once at startup so
// triggers left over from a previous day are cleared before arming.
func (s *Service) Run(ctx context.Context) error {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	minute := time.NewTicker(time.Minute)
	defer minute.Stop()

	log.Printf("Screenshot service running (active=%v)", s.Active())
	s.MinuteTick(ctx, s.cfg.Clock.Now())

	for {
		select {
		case <-ctx.Done():
			s.background.Wait()
			return ctx.Err()
		case <-tick.C:
			s.Tick(ctx, s.cfg.Clock.Now())
		case <-minute.C:
			s.MinuteTick(ctx, s.cfg.Clock.Now())
		}
	}
}

// Tick advances a running countdown, or arms one from the schedule when
// no countdown is running and the service is active. A run that reached
// zero on the previous tick is settled here, one turn after its final tone.
func (s *Service) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var (
		effects []countdown.Effect
		armed   *schedule.Arm
		settle  uint64
	)
	if state := s.cfg.Countdown.State(); state.Phase == models.PhaseTerminal {
		settle = state.RunID
	} else if s.cfg.Countdown.Active() {
		effects = s.cfg.Countdown.Tick()
	} else if s.active {
		if arm, ok := s.cfg.Schedule.Evaluate(now); ok {
			if _, err := s.cfg.Countdown.Arm(arm.Remaining); err != nil {
				log.Printf("Failed to arm countdown for %s: %v", arm.Slot.Time, err)
			} else {
				armed = &arm
			}
		}
	}
	active := s.active
	s.mu.Unlock()

	if settle != 0 {
		s.settle(ctx, settle, active)
		return
	}
	if armed != nil {
		log.Printf("Countdown armed for %s (%ds)", armed.Slot.Time, armed.Remaining)
		s.slotsChanged()
	}
	s.publishCountdown()
	s.dispatch(ctx, effects, active)
}

// MinuteTick clears all triggers and cancels any countdown the first time
// it runs on a new calendar day, including a day missed while stopped.
func (s *Service) MinuteTick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	_, day, reset := s.cfg.Schedule.ResetForDay(now)
	cancelled := false
	if reset {
		cancelled = s.cfg.Countdown.Cancel()
	}
	s.mu.Unlock()

	if !reset {
		return
	}
	log.Printf("Daily reset for %s (countdown cancelled: %v)", day, cancelled)
	if s.cfg.Store != nil {
		if err := s.cfg.Store.SaveResetDay(day); err != nil {
			log.Printf("Failed to persist reset day: %v", err)
		}
	}
	s.slotsChanged()
	s.publishCountdown()
}

func (s *Service) dispatch(ctx context.Context, effects []countdown.Effect, active bool) {
	for _, e := range effects {
		if !s.cfg.Countdown.Current(e.RunID) {
			continue
		}

		if active {
			switch e.Kind {
			case countdown.EffectNotify30:
				s.cfg.Tones.PlayTone(ctx, models.ToneBeep)
				s.background.Add(1)
				go func(runID uint64) {
					defer s.background.Done()
					if s.cfg.Countdown.Current(runID) {
						s.notify30(ctx)
					}
				}(e.RunID)
			case countdown.EffectTone, countdown.EffectFinalTone:
				s.cfg.Tones.PlayTone(ctx, models.ToneBeep)
			}
		}
	}
}

func (s *Service) notify30(ctx context.Context) {
	if s.cfg.Notifier == nil || s.cfg.Notifier.Permission() != models.PermissionGranted {
		return
	}
	if err := s.cfg.Notifier.Notify(ctx, notify.ThirtySecondWarning); err != nil {
		log.Printf("Failed to show notification: %v", err)
	}
}

// settle ends a finished run on the tick after its final tone.
func (s *Service) settle(ctx context.Context, runID uint64, active bool) {
	s.mu.Lock()
	settled := s.cfg.Countdown.Settle(runID)
	s.mu.Unlock()
	if !settled {
		return
	}
	s.publishCountdown()

	if active && s.cfg.AutoCapture {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			s.Capture(ctx)
		}()
	}
}

func (s *Service) publishCountdown() {
	state := s.cfg.Countdown.State()

	s.mu.Lock()
	idle := state.Phase == models.PhaseInactive
	skip := idle && s.publishedIdle
	s.publishedIdle = idle
	s.mu.Unlock()

	if !skip {
		s.cfg.Events.Publish(notify.NewEvent(notify.EventCountdown, state))
	}
}

// slotsChanged persists and publishes the current slots. Saves are
// serialized and a snapshot older than the last one written is dropped.
func (s *Service) slotsChanged() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	slots, version := s.cfg.Schedule.Snapshot()
	if version < s.savedVersion {
		return
	}
	s.savedVersion = version
	if s.cfg.Store != nil {
		if err := s.cfg.Store.SaveSlots(slots); err != nil {
			log.Printf("Failed to persist slots: %v", err)
		}
	}
	s.cfg.Events.Publish(notify.NewEvent(notify.EventSlots, map[string]any{
		"slots":   slots,
		"version": version,
	}))
}

// Capture runs the capture pipeline and reports the outcome to the dashboard.
func (s *Service) Capture(ctx context.Context) (*models.Capture, error) {
	return s.runCapture(ctx, s.pipeline.Capture)
}

func (s *Service) Retake(ctx context.Context) (*models.Capture, error) {
	return s.runCapture(ctx, s.pipeline.Retake)
}

func (s *Service) runCapture(ctx context.Context, fn func(context.Context) (*models.Capture, error)) (*models.Capture, error) {
	c, err := fn(ctx)
	if err != nil {
		s.cfg.Events.Publish(notify.NewEvent(notify.EventError, map[string]string{
			"message": UserMessage(err),
		}))
		return nil, err
	}
	s.cfg.Events.Publish(notify.NewEvent(notify.EventCapture, c))
	return c, nil
}

func (s *Service) analysisDone(report *models.AnalysisReport) {
	s.cfg.Events.Publish(notify.NewEvent(notify.EventAnalysis, report))
}

// UserMessage converts a capture error into the message shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, capture.ErrBusy):
		return "A capture or analysis is already in progress."
	case errors.Is(err, capture.ErrCaptureCancelled):
		return "Screen capture was cancelled. Nothing was saved."
	default:
		return fmt.Sprintf("Screenshot failed: %v", err)
	}
}

// Wait blocks until background captures and analyses have finished.
func (s *Service) Wait() {
	s.background.Wait()
	s.pipeline.Wait()
}

func (s *Service) Pipeline() *capture.Pipeline {
	return s.pipeline
}

type discard struct{}

func (discard) Publish(notify.Event) {}
func (discard) PlayTone(context.Context, models.Tone) {}
