package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CactiLab/FIDO2Verif/internal/scenario"
	"github.com/CactiLab/FIDO2Verif/internal/testutil/testlog"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestTemplateLoadsAsDefaults(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}

	cfg, err := Load(path, dir)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	want := Default(".")
	if cfg.Root != "." || cfg.Library != want.Library || cfg.OracleTimeout != 30*time.Second {
		t.Fatalf("template should match defaults: %+v", cfg)
	}
	if cfg.Analyze != scenario.AnalyzeFull || cfg.RoleLattice != scenario.RolePowerSet {
		t.Fatalf("unexpected modes: %s %s", cfg.Analyze, cfg.RoleLattice)
	}
}

func TestLoadOverlaysOnlyDefinedKeys(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
analyze = "simple"
role_catalog = "coarse"
oracle_timeout = "45s"
phases = ["auth_server_gen", "reg_client"]

[ssh]
port = "2222"
`)
	cfg, err := Load(path, dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Root != dir || cfg.RegistrationTemplate != "Reg.pv" {
		t.Fatalf("undefined keys should keep defaults: %+v", cfg)
	}
	if cfg.Analyze != scenario.AnalyzeSimple || !cfg.CatalogOptions().CoarseRoles {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	if cfg.OracleTimeout != 45*time.Second || cfg.SSH.Port != "2222" || cfg.SSH.DialTimeout != 10*time.Second {
		t.Fatalf("unexpected timeouts/ssh: %+v", cfg)
	}
	if len(cfg.Phases) != 2 {
		t.Fatalf("unexpected phases: %v", cfg.Phases)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"unknown key":   `colour = "blue"`,
		"bad analyze":   `analyze = "partial"`,
		"bad lattice":   `role_lattice = "chain"`,
		"bad timeout":   `oracle_timeout = "soon"`,
		"bad phase":     `phases = ["reg_everything"]`,
		"bad runner":    `runner = "k8s"`,
		"ssh no host":   `runner = "ssh"`,
		"shared dirs":   "log_dir = \"out\"\nresult_dir = \"out\"",
		"dir is root":   `scratch_dir = "."`,
		"zero timeout":  `oracle_timeout = "0s"`,
		"bad catalog":   `role_catalog = "tiny"`,
		"empty library": `library = ""`,
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), "config.toml")
		writeFile(t, path, body)
		_, err := Load(path, t.TempDir())
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected invalid config, got %v", name, err)
		}
	}
}

func TestSSHRunnerValidation(t *testing.T) {
	testlog.Start(t)
	cfg := Default(t.TempDir())
	cfg.Runner = RunnerSSH
	cfg.SSH.Host = "verifier"
	cfg.SSH.User = "ci"
	cfg.SSH.KeyPath = "/keys/id_ed25519"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected known_hosts requirement, got %v", err)
	}
	cfg.SSH.InsecureIgnoreHostKey = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.RemoteLibrary(); got != cfg.Path("FIDO2.pvl") {
		t.Fatalf("remote library should default to the local path, got %s", got)
	}
	cfg.SSH.RemoteLibrary = "/srv/fido2/FIDO2.pvl"
	if got := cfg.RemoteLibrary(); got != "/srv/fido2/FIDO2.pvl" {
		t.Fatalf("unexpected remote library: %s", got)
	}
}

func TestCheckInputs(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	cfg := Default(root)
	if err := cfg.CheckInputs(); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
	writeFile(t, filepath.Join(root, "Reg.pv"), "reg\n")
	writeFile(t, filepath.Join(root, "Auth.pv"), "auth\n")
	if err := cfg.CheckInputs(); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected missing library, got %v", err)
	}
	writeFile(t, filepath.Join(root, "FIDO2.pvl"), "lib\n")
	if err := cfg.CheckInputs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Runner = RunnerSSH
	if err := os.Remove(filepath.Join(root, "FIDO2.pvl")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := cfg.CheckInputs(); err != nil {
		t.Fatalf("remote runs should not require a local library: %v", err)
	}
}

func TestPrepareResetsWorkingDirectories(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	cfg := Default(root)
	stale := filepath.Join(root, "Result", "reg_client", "old.txt")
	writeFile(t, stale, "stale")

	if err := cfg.Prepare(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale result should be removed, stat err=%v", err)
	}
	for _, dir := range []string{"LOG", "TEMP", "Result"} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("%s not recreated: %v", dir, err)
		}
	}
}

func TestValidateRejectsWorkDirsHoldingInputs(t *testing.T) {
	testlog.Start(t)
	parent := t.TempDir()
	root := filepath.Join(parent, "work")
	writeFile(t, filepath.Join(root, "Reg.pv"), "reg\n")

	cases := map[string]func(*Config){
		"parent of root":      func(c *Config) { c.LogDir = ".." },
		"absolute ancestor":   func(c *Config) { c.ResultDir = parent },
		"holds template":      func(c *Config) { c.RegistrationTemplate = "TEMP/Reg.pv" },
		"holds library":       func(c *Config) { c.Library = filepath.Join(root, "LOG", "FIDO2.pvl") },
		"nested work dirs":    func(c *Config) { c.ScratchDir = "Result/tmp" },
		"filesystem root":     func(c *Config) { c.LogDir = "/" },
		"dotted back to root": func(c *Config) { c.ResultDir = "LOG/.." },
	}
	for name, mutate := range cases {
		cfg := Default(root)
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected invalid config, got %v", name, err)
		}
	}

	cfg := Default(root)
	cfg.LogDir = filepath.Join(parent, "logs")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sibling log dir should be allowed: %v", err)
	}
	if err := cfg.Prepare(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "Reg.pv")); err != nil {
		t.Fatalf("template removed by prepare: %v", err)
	}
}

func TestSSHPassphraseFromEnvironment(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[ssh]\npassphrase_env = \"FIDO2VERIF_TEST_KEY_PASS\"\n")
	cfg, err := Load(path, dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SSHPassphrase() != nil {
		t.Fatalf("unset variable should give no passphrase")
	}
	t.Setenv("FIDO2VERIF_TEST_KEY_PASS", "hunter2")
	if got := string(cfg.SSHPassphrase()); got != "hunter2" {
		t.Fatalf("unexpected passphrase %q", got)
	}
	if Default(dir).SSHPassphrase() != nil {
		t.Fatalf("no passphrase_env should give no passphrase")
	}
}
