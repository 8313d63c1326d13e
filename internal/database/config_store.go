package database

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/kdimtricp/shottime/internal/models"
)

const (
	KeySlots           = "screenshot-time-slots"
	KeyActive          = "screenshot-time-active"
	KeyFaceDetection   = "screenshot-face-detection"
	KeyNameRecognition = "screenshot-name-recognition"
	KeyCaptureDelay    = "screenshot-capture-delay"
	KeyFilenamePrefix  = "screenshot-filename-prefix"
	KeyPrefixEnabled   = "screenshot-filename-prefix-enabled"
	KeySaveDirectory   = "screenshot-save-directory"
	KeyCounters        = "screenshot-filename-counters"
	KeyResetDay        = "screenshot-time-reset-day"
)

// ConfigStore keeps the persisted local state. Every read is best-effort:
// missing or corrupt values fall back to defaults.
type ConfigStore struct {
	kv *KVStore
	mu sync.Mutex
}

func NewConfigStore(kv *KVStore) *ConfigStore {
	return &ConfigStore{kv: kv}
}

// LoadSlots returns the stored slots and whether any were stored.
func (s *ConfigStore) LoadSlots() ([]models.TimeSlot, bool) {
	raw, ok, err := s.kv.Get(KeySlots)
	if err != nil {
		log.Printf("[STORE] Failed to read slots: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var slots []models.TimeSlot
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		log.Printf("[STORE] Ignoring corrupt slots: %v", err)
		return nil, false
	}
	valid := slots[:0]
	for _, slot := range slots {
		if _, err := slot.SecondsOfDay(); err != nil {
			log.Printf("[STORE] Dropping slot %d: %v", slot.ID, err)
			continue
		}
		valid = append(valid, slot)
	}
	return valid, true
}

func (s *ConfigStore) SaveSlots(slots []models.TimeSlot) error {
	if slots == nil {
		slots = []models.TimeSlot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to encode slots: %w", err)
	}
	return s.kv.Set(KeySlots, string(data))
}

// LoadResetDay returns the day slot triggers were last cleared for, or "".
func (s *ConfigStore) LoadResetDay() string {
	return s.loadString(KeyResetDay, "")
}

func (s *ConfigStore) SaveResetDay(day string) error {
	return s.kv.Set(KeyResetDay, day)
}

func (s *ConfigStore) LoadActive() bool {
	return s.loadBool(KeyActive, false)
}

func (s *ConfigStore) SaveActive(active bool) error {
	return s.kv.Set(KeyActive, strconv.FormatBool(active))
}

func (s *ConfigStore) LoadSettings() models.Settings {
	defaults := models.DefaultSettings()
	settings := models.Settings{
		FaceDetection:   s.loadBool(KeyFaceDetection, defaults.FaceDetection),
		NameRecognition: s.loadBool(KeyNameRecognition, defaults.NameRecognition),
		CaptureDelay:    s.loadBool(KeyCaptureDelay, defaults.CaptureDelay),
		FilenamePrefix:  s.loadString(KeyFilenamePrefix, defaults.FilenamePrefix),
		PrefixEnabled:   s.loadBool(KeyPrefixEnabled, defaults.PrefixEnabled),
		SaveDirectory:   s.loadString(KeySaveDirectory, defaults.SaveDirectory),
	}
	return settings
}

func (s *ConfigStore) SaveSettings(settings models.Settings) error {
	values := map[string]string{
		KeyFaceDetection:   strconv.FormatBool(settings.FaceDetection),
		KeyNameRecognition: strconv.FormatBool(settings.NameRecognition),
		KeyCaptureDelay:    strconv.FormatBool(settings.CaptureDelay),
		KeyFilenamePrefix:  settings.FilenamePrefix,
		KeyPrefixEnabled:   strconv.FormatBool(settings.PrefixEnabled),
		KeySaveDirectory:   settings.SaveDirectory,
	}
	for key, value := range values {
		if err := s.kv.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// LoadCounters returns the per-minute filename counters.
func (s *ConfigStore) LoadCounters() map[string]int {
	counters := make(map[string]int)
	raw, ok, err := s.kv.Get(KeyCounters)
	if err != nil {
		log.Printf("[STORE] Failed to read counters: %v", err)
		return counters
	}
	if !ok {
		return counters
	}
	if err := json.Unmarshal([]byte(raw), &counters); err != nil {
		log.Printf("[STORE] Ignoring corrupt counters: %v", err)
		return make(map[string]int)
	}
	return counters
}

// NextCounter returns how many files were already named for minute and
// records one more.
func (s *ConfigStore) NextCounter(minute string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counters := s.LoadCounters()
	n := counters[minute]

	// Only the current minute can collide again.
	next := map[string]int{minute: n + 1}
	data, err := json.Marshal(next)
	if err != nil {
		return n, fmt.Errorf("failed to encode counters: %w", err)
	}
	if err := s.kv.Set(KeyCounters, string(data)); err != nil {
		return n, err
	}
	return n, nil
}

func (s *ConfigStore) loadBool(key string, fallback bool) bool {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		log.Printf("[STORE] Failed to read %s: %v", key, err)
		return fallback
	}
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (s *ConfigStore) loadString(key, fallback string) string {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		log.Printf("[STORE] Failed to read %s: %v", key, err)
		return fallback
	}
	if !ok {
		return fallback
	}
	return raw
}
