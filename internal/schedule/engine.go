package schedule

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kdimtricp/shottime/internal/models"
)

const (
	// LeadSeconds is how long before a slot the countdown starts.
	LeadSeconds = 60
	// MatchWindowSeconds is the tolerance either side of the start instant at 1 Hz ticks.
	MatchWindowSeconds = 2
	// DayLayout formats the calendar day a trigger reset belongs to.
	DayLayout = "2006-01-02"
)

var ErrSlotNotFound = errors.New("slot not found")

var defaultTimes = []string{
	"09:10", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00", "17:50",
}

// DefaultSlots returns the built-in lecture timetable.
func DefaultSlots() []models.TimeSlot {
	slots := make([]models.TimeSlot, 0, len(defaultTimes))
	for i, t := range defaultTimes {
		slots = append(slots, models.TimeSlot{ID: i + 1, Time: t, Enabled: true})
	}
	return slots
}

// Arm is the decision to start a countdown for a slot.
type Arm struct {
	Slot      models.TimeSlot
	Remaining int
}

// Engine owns the slot collection. Every mutation swaps in a new snapshot;
// slices handed out are never modified afterwards.
type Engine struct {
	mu      sync.RWMutex
	slots   []models.TimeSlot
	version uint64
	// resetDay is the day triggers were last cleared for, in DayLayout.
	resetDay string
}

func NewEngine(slots []models.TimeSlot) *Engine {
	e := &Engine{}
	if slots == nil {
		slots = DefaultSlots()
	}
	e.slots = sortSlots(slots)
	return e
}

// Snapshot returns the current slots in ascending time order and the collection version.
func (e *Engine) Snapshot() ([]models.TimeSlot, uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.slots, e.version
}

func (e *Engine) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Replace swaps in an imported slot list. Times are normalized to HH:MM
// and missing or duplicate IDs are reassigned.
func (e *Engine) Replace(slots []models.TimeSlot) ([]models.TimeSlot, error) {
	next := make([]models.TimeSlot, 0, len(slots))
	seen := make(map[int]bool, len(slots))
	for _, s := range slots {
		normalized, err := models.NormalizeClock(s.Time)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", s.ID, err)
		}
		s.Time = normalized
		if s.ID <= 0 || seen[s.ID] {
			s.ID = 0
		} else {
			seen[s.ID] = true
		}
		next = append(next, s)
	}
	for i := range next {
		if next[i].ID == 0 {
			next[i].ID = nextID(next)
		}
	}
	return e.mutate(func([]models.TimeSlot) ([]models.TimeSlot, error) {
		return next, nil
	})
}

func (e *Engine) Add(clock string, enabled bool) ([]models.TimeSlot, error) {
	normalized, err := models.NormalizeClock(clock)
	if err != nil {
		return nil, err
	}
	return e.mutate(func(cur []models.TimeSlot) ([]models.TimeSlot, error) {
		next := append(cloneSlots(cur), models.TimeSlot{
			ID:      nextID(cur),
			Time:    normalized,
			Enabled: enabled,
		})
		return next, nil
	})
}

// Update changes a slot's time and enabled flag. Changing the time clears Triggered.
func (e *Engine) Update(id int, clock string, enabled bool) ([]models.TimeSlot, error) {
	normalized, err := models.NormalizeClock(clock)
	if err != nil {
		return nil, err
	}
	return e.mapSlot(id, func(s models.TimeSlot) models.TimeSlot {
		if s.Time != normalized {
			s.Triggered = false
		}
		s.Time = normalized
		s.Enabled = enabled
		return s
	})
}

func (e *Engine) Toggle(id int) ([]models.TimeSlot, error) {
	return e.mapSlot(id, func(s models.TimeSlot) models.TimeSlot {
		s.Enabled = !s.Enabled
		return s
	})
}

func (e *Engine) Delete(id int) ([]models.TimeSlot, error) {
	return e.mutate(func(cur []models.TimeSlot) ([]models.TimeSlot, error) {
		next := make([]models.TimeSlot, 0, len(cur))
		found := false
		for _, s := range cur {
			if s.ID == id {
				found = true
				continue
			}
			next = append(next, s)
		}
		if !found {
			return nil, fmt.Errorf("slot %d: %w", id, ErrSlotNotFound)
		}
		return next, nil
	})
}

func (e *Engine) ResetToDefault() []models.TimeSlot {
	slots, _ := e.mutate(func([]models.TimeSlot) ([]models.TimeSlot, error) {
		return DefaultSlots(), nil
	})
	return slots
}

// ResetTriggers clears Triggered on every slot. Used at midnight and by the manual reset.
func (e *Engine) ResetTriggers() []models.TimeSlot {
	slots, _ := e.mutate(func(cur []models.TimeSlot) ([]models.TimeSlot, error) {
		next := cloneSlots(cur)
		for i := range next {
			next[i].Triggered = false
		}
		return next, nil
	})
	return slots
}

// SetResetDay restores the day of the last trigger reset, e.g. from storage.
func (e *Engine) SetResetDay(day string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetDay = day
}

func (e *Engine) ResetDay() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resetDay
}

// ResetForDay clears every trigger the first time it sees a calendar day
// other than the last reset day, so a missed midnight is still caught.
func (e *Engine) ResetForDay(now time.Time) ([]models.TimeSlot, string, bool) {
	day := now.Format(DayLayout)

	e.mu.Lock()
	if e.resetDay == day {
		e.mu.Unlock()
		return nil, day, false
	}
	e.resetDay = day
	e.mu.Unlock()

	return e.ResetTriggers(), day, true
}

// Evaluate checks the enabled, untriggered slots against now and arms at most one.
// The armed slot is marked triggered in the same step.
func (e *Engine) Evaluate(now time.Time) (Arm, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := now.Hour()*3600 + now.Minute()*60 + now.Second()

	for i, slot := range e.slots {
		if !slot.Enabled || slot.Triggered {
			continue
		}
		target, err := slot.SecondsOfDay()
		if err != nil {
			continue
		}
		start := target - LeadSeconds
		if abs(current-start) > MatchWindowSeconds {
			continue
		}

		next := cloneSlots(e.slots)
		next[i].Triggered = true
		e.slots = next
		e.version++

		return Arm{
			Slot:      next[i],
			Remaining: clamp(target-current, 1, LeadSeconds),
		}, true
	}
	return Arm{}, false
}

func (e *Engine) mapSlot(id int, fn func(models.TimeSlot) models.TimeSlot) ([]models.TimeSlot, error) {
	return e.mutate(func(cur []models.TimeSlot) ([]models.TimeSlot, error) {
		next := cloneSlots(cur)
		for i := range next {
			if next[i].ID == id {
				next[i] = fn(next[i])
				return next, nil
			}
		}
		return nil, fmt.Errorf("slot %d: %w", id, ErrSlotNotFound)
	})
}

func (e *Engine) mutate(fn func([]models.TimeSlot) ([]models.TimeSlot, error)) ([]models.TimeSlot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(e.slots)
	if err != nil {
		return nil, err
	}
	e.slots = sortSlots(next)
	e.version++
	return e.slots, nil
}

func sortSlots(slots []models.TimeSlot) []models.TimeSlot {
	sorted := cloneSlots(slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Time == sorted[j].Time {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Time < sorted[j].Time
	})
	return sorted
}

func cloneSlots(slots []models.TimeSlot) []models.TimeSlot {
	out := make([]models.TimeSlot, len(slots))
	copy(out, slots)
	return out
}

func nextID(slots []models.TimeSlot) int {
	max := 0
	for _, s := range slots {
		if s.ID > max {
			max = s.ID
		}
	}
	return max + 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
