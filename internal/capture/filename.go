package capture

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/kdimtricp/shottime/internal/models"
)

const minuteLayout = "06-01-02-15-04"

type CounterStore interface {
	NextCounter(minute string) (int, error)
}

// Filename builds "[prefix_]YY-MM-DD-HH-MM[(n)].png".
func Filename(t time.Time, prefix string, n int) string {
	var sb strings.Builder
	if prefix != "" {
		sb.WriteString(prefix)
		sb.WriteByte('_')
	}
	sb.WriteString(t.Format(minuteLayout))
	if n > 0 {
		fmt.Fprintf(&sb, "(%d)", n)
	}
	sb.WriteString(".png")
	return sb.String()
}

// EffectivePrefix returns the prefix to use, or "" when disabled.
func EffectivePrefix(settings models.Settings) string {
	if !settings.PrefixEnabled {
		return ""
	}
	prefix := strings.TrimSpace(settings.FilenamePrefix)
	return strings.NewReplacer("/", "-", `\`, "-", "..", "-").Replace(prefix)
}

type Namer struct {
	counters CounterStore
}

func NewNamer(counters CounterStore) *Namer {
	return &Namer{counters: counters}
}

// Next names a capture taken at t. Captures within the same minute get
// increasing "(n)" suffixes.
func (n *Namer) Next(t time.Time, settings models.Settings) string {
	minute := t.Format(minuteLayout)
	count, err := n.counters.NextCounter(minute)
	if err != nil {
		log.Printf("[CAPTURE] Failed to persist filename counter: %v", err)
	}
	return Filename(t, EffectivePrefix(settings), count)
}

// MemoryCounters is a CounterStore that lives for the process only.
type MemoryCounters struct {
	mu     sync.Mutex
	minute string
	count  int
}

func (m *MemoryCounters) NextCounter(minute string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.minute != minute {
		m.minute = minute
		m.count = 0
	}
	n := m.count
	m.count++
	return n, nil
}
