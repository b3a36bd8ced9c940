package gardener

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 24

// CycleRecord captures what happened in a single gardener cycle.
type CycleRecord struct {
	Month     int     `json:"month"`
	Condition string  `json:"condition"`
	Steps     int     `json:"steps"`
	Planted   int     `json:"planted"`
	Harvested int     `json:"harvested"`
	Died      int     `json:"died"`
	Budget    float64 `json:"budget"`
	Error     string  `json:"error,omitempty"`
}

// CycleMemory manages a ring of recent gardener cycle records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file from disk. Returns empty memory if not found.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{path: path}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("gardener memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	mem.path = path
	return &mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal gardener memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write gardener memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Summary returns one line per recent cycle.
func (m *CycleMemory) Summary(n int) string {
	if len(m.Records) == 0 {
		return ""
	}
	var b strings.Builder
	start := max(0, len(m.Records)-n)
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "- Month %d: %s, steps=%d, planted=%d, harvested=%d, died=%d, budget=%.2f",
			r.Month, r.Condition, r.Steps, r.Planted, r.Harvested, r.Died, r.Budget)
		if r.Error != "" {
			fmt.Fprintf(&b, ", error=%s", r.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
