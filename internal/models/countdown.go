package models

type CountdownPhase string

const (
	PhaseInactive CountdownPhase = "inactive"
	PhaseRunning  CountdownPhase = "running"
	PhaseTerminal CountdownPhase = "terminal"
)

// CountdownState is a snapshot of the countdown controller.
// Remaining is nil while no run is armed.
type CountdownState struct {
	Remaining *int           `json:"remaining"`
	Active    bool           `json:"active"`
	Phase     CountdownPhase `json:"phase"`
	RunID     uint64         `json:"run_id"`
	Label     string         `json:"label,omitempty"`
}

// CountdownLabel maps the remaining seconds to the stage shown on the dashboard.
func CountdownLabel(remaining int) string {
	switch {
	case remaining > 30:
		return "prepare"
	case remaining > 10:
		return "soon"
	default:
		return "final"
	}
}
