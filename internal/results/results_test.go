package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CactiLab/FIDO2Verif/internal/logging"
	"github.com/CactiLab/FIDO2Verif/internal/oracle"
	"github.com/CactiLab/FIDO2Verif/internal/scenario"
	"github.com/CactiLab/FIDO2Verif/internal/testutil/testlog"
)

func descriptor() scenario.Descriptor {
	return scenario.Descriptor{
		Phase:  scenario.Phase{Name: "auth_server_sim", Family: scenario.FamilyAuthentication},
		Type:   scenario.AuthenticatorType{Name: "auth_server_sim"},
		Mode:   scenario.AuxiliaryMode{Name: "setPIN"},
		Query:  scenario.Query{Name: "S-cntr"},
		Fields: scenario.FieldSubset{Indices: scenario.NewIndexSet(0, 2)},
		Roles:  scenario.RoleSubset{Indices: scenario.NewIndexSet(1, 3)},
	}
}

func TestScratchWriteRelease(t *testing.T) {
	testlog.Start(t)
	s, err := NewScratch(filepath.Join(t.TempDir(), "TEMP"))
	if err != nil {
		t.Fatalf("new scratch: %v", err)
	}
	d := descriptor()
	path, err := s.Write(d, []byte("process 0\n"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "TEMP-auth_server_sim-S-cntr-fields-2-mali-2,,,1,3.pv" {
		t.Fatalf("unexpected scratch name: %s", filepath.Base(path))
	}
	doc, err := s.Release(path)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if string(doc) != "process 0\n" {
		t.Fatalf("unexpected released content: %q", doc)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("scratch should be removed, stat err=%v", err)
	}
}

func TestStoreWritesNonAttackArtifacts(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	store := NewStore(root)
	d := descriptor()

	path, err := store.Write(7, d, oracle.Adjudication{
		Verdict:  oracle.OpenGoal,
		Document: []byte("DOC\n"),
		Tail:     []byte("cannot be proved"),
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	wantDir := filepath.Join(root, "auth_server_sim", "setPIN", "auth_server_sim", "S-cntr")
	if filepath.Dir(path) != wantDir {
		t.Fatalf("unexpected artifact dir: %s", filepath.Dir(path))
	}
	if !strings.HasPrefix(filepath.Base(path), "7_auth_server_sim_prove_") {
		t.Fatalf("unexpected artifact name: %s", filepath.Base(path))
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(body) != "DOC\ncannot be proved" {
		t.Fatalf("unexpected artifact body: %q", body)
	}

	path, err = store.Write(8, d, oracle.Adjudication{Verdict: oracle.AttackFound})
	if err != nil || path != "" {
		t.Fatalf("attack should not be archived: path=%q err=%v", path, err)
	}
	logging.Logf("results/store: artifact %s", filepath.Base(path))
}

func TestArtifactNamesAreDistinctPerSequence(t *testing.T) {
	testlog.Start(t)
	d := descriptor()
	a := ArtifactName(1, d, oracle.SecureProved)
	b := ArtifactName(2, d, oracle.SecureProved)
	if a == b {
		t.Fatalf("sequence must disambiguate names: %s", a)
	}
}

func TestPhaseLogAppendsLines(t *testing.T) {
	testlog.Start(t)
	l, err := OpenPhaseLog(t.TempDir(), "reg_client")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d := descriptor()
	if err := l.Append(FormatAdjudicated(0, d, oracle.SecureProved)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(FormatSkipped(1, d)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "0    auth_server_sim  true type ") {
		t.Fatalf("unexpected adjudicated line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "skipping for secure sets") || !strings.Contains(lines[1], "mali-2,,,1,3") {
		t.Fatalf("unexpected skipped line: %q", lines[1])
	}
	logging.Logf("results/phaselog: %s", lines[0])
}

func TestSummaryRoundTrip(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := Summary{
		RunID:       "run-1",
		Phase:       "reg_server",
		Analyze:     "full",
		RoleLattice: "powerset",
		StartedAt:   start,
		FinishedAt:  start.Add(time.Minute),
		Descriptors: 10,
		Skipped:     4,
		Invocations: 9,
		Artifacts:   5,
		Verdicts:    map[string]int{"SecureProved": 3, "AttackFound": 3},
	}
	path, err := WriteSummary(root, in)
	if err != nil {
		t.Fatalf("write summary: %v", err)
	}
	if path != filepath.Join(root, "reg_server", SummaryFile) {
		t.Fatalf("unexpected summary path: %s", path)
	}
	out, err := ReadSummary(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if out.RunID != "run-1" || out.Skipped != 4 || out.Verdicts["AttackFound"] != 3 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if !out.FinishedAt.Equal(in.FinishedAt) {
		t.Fatalf("timestamps not preserved: %v", out.FinishedAt)
	}
}
