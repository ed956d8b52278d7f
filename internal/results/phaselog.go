package results

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/CactiLab/FIDO2Verif/internal/oracle"
	"github.com/CactiLab/FIDO2Verif/internal/scenario"
)

// PhaseLog is the plain-text verdict stream of one phase, one line per
// visited descriptor.
type PhaseLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func OpenPhaseLog(dir, phase string) (*PhaseLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("results: create log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, phase+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("results: open phase log %s: %w", path, err)
	}
	return &PhaseLog{path: path, f: f}, nil
}

func (l *PhaseLog) Path() string {
	return l.path
}

// Append writes one line and flushes it to disk so a partial run leaves a
// readable log.
func (l *PhaseLog) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.WriteString(line + "\n"); err != nil {
		return err
	}
	return l.f.Sync()
}

func (l *PhaseLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// FormatAdjudicated renders the log line of an adjudicated descriptor.
func FormatAdjudicated(seq int, d scenario.Descriptor, v oracle.Verdict) string {
	return fmt.Sprintf("%-5d%-4s  %s%s", seq, d.Phase.Name, v.Tag(), descriptorColumns(d))
}

// FormatSkipped renders the log line of a descriptor covered by a secure set.
func FormatSkipped(seq int, d scenario.Descriptor) string {
	return fmt.Sprintf("%-5d%-4s  skipping for secure sets%s", seq, d.Phase.Name, descriptorColumns(d))
}

func descriptorColumns(d scenario.Descriptor) string {
	return fmt.Sprintf(
		" type %-4s query %-4s ctap %-5s%-9s %-8s",
		d.Type.Name, d.Query.Name, d.Mode.Name, d.Fields.Name(), d.Roles.Name(),
	)
}
