package results

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/CactiLab/FIDO2Verif/internal/oracle"
	"github.com/CactiLab/FIDO2Verif/internal/scenario"
)

// Store writes result artifacts under
// <root>/<phase>/<mode>/<type>/<query>/.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Dir(d scenario.Descriptor) string {
	return filepath.Join(s.root, d.Phase.Name, d.Mode.Name, d.Type.Name, d.Query.Name)
}

// ArtifactName composes the deterministic file name of one adjudication.
func ArtifactName(seq int, d scenario.Descriptor, v oracle.Verdict) string {
	return fmt.Sprintf(
		"%d_%s_%s_type-%s_query-%s_ctap-%s_%s_%s.txt",
		seq, d.Phase.Name, v.Tag(), d.Type.Name, d.Query.Name, d.Mode.Name, d.Fields.Name(), d.Roles.Name(),
	)
}

// Write stores the archived document followed by the output tail. Attack
// verdicts are never archived and return an empty path.
func (s *Store) Write(seq int, d scenario.Descriptor, adj oracle.Adjudication) (string, error) {
	if !adj.Verdict.Archived() {
		return "", nil
	}
	dir := s.Dir(d)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("results: create result dir %s: %w", dir, err)
	}

	body := make([]byte, 0, len(adj.Document)+len(adj.Tail))
	body = append(body, adj.Document...)
	body = append(body, adj.Tail...)

	path := filepath.Join(dir, ArtifactName(seq, d, adj.Verdict))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("results: write artifact %s: %w", path, err)
	}
	return path, nil
}
