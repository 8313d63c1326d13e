package screenshot

import (
	"log"
	"time"

	"github.com/kdimtricp/shottime/internal/models"
)

// State is what the dashboard renders.
type State struct {
	Now          time.Time              `json:"now"`
	Active       bool                   `json:"active"`
	Slots        []models.TimeSlot      `json:"slots"`
	SlotsVersion uint64                 `json:"slots_version"`
	Countdown    models.CountdownState  `json:"countdown"`
	Settings     models.Settings        `json:"settings"`
	Capturing    bool                   `json:"capturing"`
	Analyzing    bool                   `json:"analyzing"`
	LastCapture  *models.Capture        `json:"last_capture,omitempty"`
	LastReport   *models.AnalysisReport `json:"last_report,omitempty"`
	Notification models.PermissionState `json:"notification_permission"`
	SaveTarget   string                 `json:"save_target,omitempty"`
	ClockSynced  bool                   `json:"clock_synced"`
}

func (s *Service) State() State {
	slots, version := s.cfg.Schedule.Snapshot()

	s.mu.Lock()
	active := s.active
	settings := s.settings
	s.mu.Unlock()

	state := State{
		Now:          s.cfg.Clock.Now(),
		Active:       active,
		Slots:        slots,
		SlotsVersion: version,
		Countdown:    s.cfg.Countdown.State(),
		Settings:     settings,
		Capturing:    s.pipeline.Capturing(),
		Analyzing:    s.pipeline.Analyzing(),
		LastCapture:  s.pipeline.LastCapture(),
		LastReport:   s.pipeline.LastReport(),
		Notification: models.PermissionDenied,
	}
	if s.cfg.Notifier != nil {
		state.Notification = s.cfg.Notifier.Permission()
	}
	if dir := s.cfg.Saver.Directory(); dir != nil {
		state.SaveTarget = dir.Name()
	}
	if c, ok := s.cfg.Clock.(interface{ Synced() bool }); ok {
		state.ClockSynced = c.Synced()
	}
	return state
}

func (s *Service) Slots() []models.TimeSlot {
	slots, _ := s.cfg.Schedule.Snapshot()
	return slots
}

func (s *Service) AddSlot(clock string, enabled bool) ([]models.TimeSlot, error) {
	slots, err := s.cfg.Schedule.Add(clock, enabled)
	if err != nil {
		return nil, err
	}
	s.slotsChanged()
	return slots, nil
}

func (s *Service) UpdateSlot(id int, clock string, enabled bool) ([]models.TimeSlot, error) {
	slots, err := s.cfg.Schedule.Update(id, clock, enabled)
	if err != nil {
		return nil, err
	}
	s.slotsChanged()
	return slots, nil
}

func (s *Service) ToggleSlot(id int) ([]models.TimeSlot, error) {
	slots, err := s.cfg.Schedule.Toggle(id)
	if err != nil {
		return nil, err
	}
	s.slotsChanged()
	return slots, nil
}

func (s *Service) DeleteSlot(id int) ([]models.TimeSlot, error) {
	slots, err := s.cfg.Schedule.Delete(id)
	if err != nil {
		return nil, err
	}
	s.slotsChanged()
	return slots, nil
}

// ReplaceSlots swaps the whole schedule for an imported one.
func (s *Service) ReplaceSlots(slots []models.TimeSlot) ([]models.TimeSlot, error) {
	next, err := s.cfg.Schedule.Replace(slots)
	if err != nil {
		return nil, err
	}
	s.slotsChanged()
	return next, nil
}

func (s *Service) ResetToDefault() []models.TimeSlot {
	slots := s.cfg.Schedule.ResetToDefault()
	s.slotsChanged()
	return slots
}

// ResetTriggers clears every trigger and cancels the running countdown.
func (s *Service) ResetTriggers() []models.TimeSlot {
	s.mu.Lock()
	slots := s.cfg.Schedule.ResetTriggers()
	s.cfg.Countdown.Cancel()
	s.mu.Unlock()

	s.slotsChanged()
	s.publishCountdown()
	return slots
}

func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Service) SetActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()

	if s.cfg.Store != nil {
		if err := s.cfg.Store.SaveActive(active); err != nil {
			log.Printf("Failed to persist active flag: %v", err)
		}
	}
	log.Printf("Screenshot schedule active: %v", active)
}

// TestCountdown starts a 60 second run right away, replacing any current run.
func (s *Service) TestCountdown() models.CountdownState {
	s.mu.Lock()
	s.cfg.Countdown.Test()
	s.mu.Unlock()

	s.publishCountdown()
	return s.cfg.Countdown.State()
}

// CancelCountdown stops the current run without touching the slots.
func (s *Service) CancelCountdown() models.CountdownState {
	s.mu.Lock()
	s.cfg.Countdown.Cancel()
	s.mu.Unlock()

	s.publishCountdown()
	return s.cfg.Countdown.State()
}

func (s *Service) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Service) UpdateSettings(settings models.Settings) models.Settings {
	s.mu.Lock()
	previousDir := s.settings.SaveDirectory
	s.settings = settings
	s.mu.Unlock()

	if settings.SaveDirectory != previousDir {
		s.openDirectory(settings.SaveDirectory)
	}
	if s.cfg.Store != nil {
		if err := s.cfg.Store.SaveSettings(settings); err != nil {
			log.Printf("Failed to persist settings: %v", err)
		}
	}
	return settings
}

func (s *Service) openDirectory(path string) {
	if path == "" || s.cfg.Directories == nil {
		s.cfg.Saver.SetDirectory(nil)
		return
	}
	dir, err := s.cfg.Directories(path)
	if err != nil {
		log.Printf("Cannot use %s for screenshots, falling back to downloads: %v", path, err)
		s.cfg.Saver.SetDirectory(nil)
		return
	}
	s.cfg.Saver.SetDirectory(dir)
}
