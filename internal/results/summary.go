package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const SummaryFile = "summary.toml"

// Summary is the closing record of one phase worker. Failures counts
// descriptors settled as oracle errors because a pass could not be prepared.
type Summary struct {
	RunID       string         `toml:"run_id"`
	Phase       string         `toml:"phase"`
	Analyze     string         `toml:"analyze"`
	RoleLattice string         `toml:"role_lattice"`
	StartedAt   time.Time      `toml:"started_at"`
	FinishedAt  time.Time      `toml:"finished_at"`
	Descriptors int            `toml:"descriptors"`
	Skipped     int            `toml:"skipped"`
	Invocations int            `toml:"invocations"`
	Artifacts   int            `toml:"artifacts"`
	WriteErrors int            `toml:"write_errors"`
	Failures    int            `toml:"failures"`
	Verdicts    map[string]int `toml:"verdicts"`
	Canceled    bool           `toml:"canceled"`
}

// WriteSummary stores s as <root>/<phase>/summary.toml.
func WriteSummary(root string, s Summary) (string, error) {
	dir := filepath.Join(root, s.Phase)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("results: create summary dir %s: %w", dir, err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("results: encode summary: %w", err)
	}
	path := filepath.Join(dir, SummaryFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("results: write summary %s: %w", path, err)
	}
	return path, nil
}

func ReadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("results: read summary %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("results: parse summary %s: %w", path, err)
	}
	return s, nil
}
