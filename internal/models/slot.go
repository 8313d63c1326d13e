package models

import (
	"fmt"
	"strconv"
	"strings"
)

type TimeSlot struct {
	ID        int    `json:"id" yaml:"id"`
	Time      string `json:"time" yaml:"time"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Triggered bool   `json:"triggered" yaml:"triggered"`
}

// ParseClock parses a 24h "HH:MM" string into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// NormalizeClock returns s reformatted as zero-padded "HH:MM".
func NormalizeClock(s string) (string, error) {
	h, m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// SecondsOfDay returns the slot time as seconds since midnight.
func (s TimeSlot) SecondsOfDay() (int, error) {
	h, m, err := ParseClock(s.Time)
	if err != nil {
		return 0, err
	}
	return h*3600 + m*60, nil
}
