package schedule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kdimtricp/shottime/internal/models"
)

type seedSlot struct {
	Time    string `yaml:"time"`
	Enabled *bool  `yaml:"enabled"`
}

// LoadSlotsFile reads a YAML timetable:
//
//	- time: "09:10"
//	- time: "10:00"
//	  enabled: false
//
// Slots default to enabled and receive ids in file order.
func LoadSlotsFile(path string) ([]models.TimeSlot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read slots file: %w", err)
	}

	var seeds []seedSlot
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse slots file: %w", err)
	}

	slots := make([]models.TimeSlot, 0, len(seeds))
	for i, seed := range seeds {
		normalized, err := models.NormalizeClock(seed.Time)
		if err != nil {
			return nil, fmt.Errorf("slots file entry %d: %w", i+1, err)
		}
		enabled := true
		if seed.Enabled != nil {
			enabled = *seed.Enabled
		}
		slots = append(slots, models.TimeSlot{ID: i + 1, Time: normalized, Enabled: enabled})
	}
	return slots, nil
}
