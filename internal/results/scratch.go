package results

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/CactiLab/FIDO2Verif/internal/scenario"
)

// Scratch is the directory holding documents while they are adjudicated.
type Scratch struct {
	dir string
}

func NewScratch(dir string) (*Scratch, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("results: create scratch dir %s: %w", dir, err)
	}
	return &Scratch{dir: dir}, nil
}

// ScratchName is unique per descriptor within one phase context; the
// authenticator type and mode are not part of it because a phase visits
// them sequentially.
func ScratchName(d scenario.Descriptor) string {
	return fmt.Sprintf("TEMP-%s-%s-%s-%s.pv", d.Phase.Name, d.Query.Name, d.Fields.Name(), d.Roles.Name())
}

func (s *Scratch) Path(d scenario.Descriptor) string {
	return filepath.Join(s.dir, ScratchName(d))
}

// Write replaces the scratch document of d.
func (s *Scratch) Write(d scenario.Descriptor, doc []byte) (string, error) {
	path := s.Path(d)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Release reads back the scratch document and removes it.
func (s *Scratch) Release(path string) ([]byte, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		return nil, err
	}
	return doc, nil
}
