package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/CactiLab/FIDO2Verif/internal/oracle"
	"github.com/CactiLab/FIDO2Verif/internal/scenario"
)

var (
	ErrInvalidConfig = errors.New("config: invalid")
	ErrMissingInput  = errors.New("config: missing input document")
)

const (
	RunnerLocal = "local"
	RunnerSSH   = "ssh"

	RoleCatalogFull   = "full"
	RoleCatalogCoarse = "coarse"
)

// Config is built once at startup and passed to every component.
type Config struct {
	Root                   string
	RegistrationTemplate   string
	AuthenticationTemplate string
	Library                string
	LogDir                 string
	ScratchDir             string
	ResultDir              string

	Analyze     scenario.AnalyzeMode
	RoleLattice scenario.RoleLattice
	RoleCatalog string
	Phases      []string

	OracleBinary  string
	OracleTimeout time.Duration
	Runner        string
	SSH           SSHConfig

	StatusAddr  string
	StatusToken string
	CorsOrigins []string
}

// SSHConfig points the oracle at a remote verification host. PassphraseEnv
// names the environment variable holding the key passphrase.
type SSHConfig struct {
	Host                  string
	Port                  string
	User                  string
	KeyPath               string
	PassphraseEnv         string
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	DialTimeout           time.Duration
	// RemoteLibrary is the library path as seen on the remote host.
	RemoteLibrary string
}

// fileConfig maps config.toml keys; paths may be relative to root.
type fileConfig struct {
	Root                   string   `toml:"root"`
	RegistrationTemplate   string   `toml:"registration_template"`
	AuthenticationTemplate string   `toml:"authentication_template"`
	Library                string   `toml:"library"`
	LogDir                 string   `toml:"log_dir"`
	ScratchDir             string   `toml:"scratch_dir"`
	ResultDir              string   `toml:"result_dir"`
	Analyze                string   `toml:"analyze"`
	RoleLattice            string   `toml:"role_lattice"`
	RoleCatalog            string   `toml:"role_catalog"`
	Phases                 []string `toml:"phases"`
	OracleBinary           string   `toml:"oracle_binary"`
	OracleTimeout          string   `toml:"oracle_timeout"`
	Runner                 string   `toml:"runner"`
	StatusAddr             string   `toml:"status_addr"`
	StatusToken            string   `toml:"status_token"`
	CorsOrigins            []string `toml:"cors_origins"`
	SSH                    struct {
		Host                  string `toml:"host"`
		Port                  string `toml:"port"`
		User                  string `toml:"user"`
		KeyPath               string `toml:"key_path"`
		PassphraseEnv         string `toml:"passphrase_env"`
		KnownHostsPath        string `toml:"known_hosts_path"`
		InsecureIgnoreHostKey bool   `toml:"insecure_ignore_host_key"`
		DialTimeout           string `toml:"dial_timeout"`
		RemoteLibrary         string `toml:"remote_library"`
	} `toml:"ssh"`
}

// Default mirrors the fixed working-directory layout: templates, library
// and working directories all live under root.
func Default(root string) Config {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	return Config{
		Root:                   root,
		RegistrationTemplate:   "Reg.pv",
		AuthenticationTemplate: "Auth.pv",
		Library:                "FIDO2.pvl",
		LogDir:                 "LOG",
		ScratchDir:             "TEMP",
		ResultDir:              "Result",
		Analyze:                scenario.AnalyzeFull,
		RoleLattice:            scenario.RolePowerSet,
		RoleCatalog:            RoleCatalogFull,
		OracleBinary:           "proverif",
		OracleTimeout:          oracle.DefaultTimeout,
		Runner:                 RunnerLocal,
		SSH: SSHConfig{
			Port:        "22",
			DialTimeout: 10 * time.Second,
		},
	}
}

// Load overlays the keys defined in path onto Default(root).
func Load(path, root string) (Config, error) {
	cfg := Default(root)

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	setString := func(dst *string, val string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = strings.TrimSpace(val)
		}
	}
	setString(&cfg.Root, raw.Root, "root")
	setString(&cfg.RegistrationTemplate, raw.RegistrationTemplate, "registration_template")
	setString(&cfg.AuthenticationTemplate, raw.AuthenticationTemplate, "authentication_template")
	setString(&cfg.Library, raw.Library, "library")
	setString(&cfg.LogDir, raw.LogDir, "log_dir")
	setString(&cfg.ScratchDir, raw.ScratchDir, "scratch_dir")
	setString(&cfg.ResultDir, raw.ResultDir, "result_dir")
	setString(&cfg.RoleCatalog, raw.RoleCatalog, "role_catalog")
	setString(&cfg.OracleBinary, raw.OracleBinary, "oracle_binary")
	setString(&cfg.Runner, raw.Runner, "runner")
	setString(&cfg.StatusAddr, raw.StatusAddr, "status_addr")
	setString(&cfg.StatusToken, raw.StatusToken, "status_token")
	setString(&cfg.SSH.Host, raw.SSH.Host, "ssh", "host")
	setString(&cfg.SSH.Port, raw.SSH.Port, "ssh", "port")
	setString(&cfg.SSH.User, raw.SSH.User, "ssh", "user")
	setString(&cfg.SSH.KeyPath, raw.SSH.KeyPath, "ssh", "key_path")
	setString(&cfg.SSH.PassphraseEnv, raw.SSH.PassphraseEnv, "ssh", "passphrase_env")
	setString(&cfg.SSH.KnownHostsPath, raw.SSH.KnownHostsPath, "ssh", "known_hosts_path")
	setString(&cfg.SSH.RemoteLibrary, raw.SSH.RemoteLibrary, "ssh", "remote_library")

	if meta.IsDefined("analyze") {
		mode, err := scenario.ParseAnalyzeMode(raw.Analyze)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		cfg.Analyze = mode
	}
	if meta.IsDefined("role_lattice") {
		lattice, err := scenario.ParseRoleLattice(raw.RoleLattice)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		cfg.RoleLattice = lattice
	}
	if meta.IsDefined("phases") {
		cfg.Phases = append([]string(nil), raw.Phases...)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = append([]string(nil), raw.CorsOrigins...)
	}
	if meta.IsDefined("oracle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.OracleTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("%w: oracle_timeout: %v", ErrInvalidConfig, err)
		}
		cfg.OracleTimeout = d
	}
	if meta.IsDefined("ssh", "insecure_ignore_host_key") {
		cfg.SSH.InsecureIgnoreHostKey = raw.SSH.InsecureIgnoreHostKey
	}
	if meta.IsDefined("ssh", "dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SSH.DialTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("%w: ssh.dial_timeout: %v", ErrInvalidConfig, err)
		}
		cfg.SSH.DialTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings without touching the filesystem.
func (c Config) Validate() error {
	required := map[string]string{
		"root":                    c.Root,
		"registration_template":   c.RegistrationTemplate,
		"authentication_template": c.AuthenticationTemplate,
		"library":                 c.Library,
		"log_dir":                 c.LogDir,
		"scratch_dir":             c.ScratchDir,
		"result_dir":              c.ResultDir,
		"oracle_binary":           c.OracleBinary,
	}
	for _, key := range []string{
		"root", "registration_template", "authentication_template", "library",
		"log_dir", "scratch_dir", "result_dir", "oracle_binary",
	} {
		if strings.TrimSpace(required[key]) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, key)
		}
	}
	if _, err := scenario.ParseAnalyzeMode(string(c.Analyze)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := scenario.ParseRoleLattice(string(c.RoleLattice)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.RoleCatalog != RoleCatalogFull && c.RoleCatalog != RoleCatalogCoarse {
		return fmt.Errorf("%w: role_catalog must be %q or %q", ErrInvalidConfig, RoleCatalogFull, RoleCatalogCoarse)
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("%w: oracle_timeout must be positive", ErrInvalidConfig)
	}
	if _, err := scenario.SelectPhases(c.Phases); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := c.validateWorkDirs(); err != nil {
		return err
	}

	switch c.Runner {
	case RunnerLocal:
	case RunnerSSH:
		if strings.TrimSpace(c.SSH.Host) == "" || strings.TrimSpace(c.SSH.User) == "" {
			return fmt.Errorf("%w: ssh runner requires ssh.host and ssh.user", ErrInvalidConfig)
		}
		if strings.TrimSpace(c.SSH.KeyPath) == "" {
			return fmt.Errorf("%w: ssh runner requires ssh.key_path", ErrInvalidConfig)
		}
		if !c.SSH.InsecureIgnoreHostKey && strings.TrimSpace(c.SSH.KnownHostsPath) == "" {
			return fmt.Errorf("%w: ssh.known_hosts_path required unless insecure_ignore_host_key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: runner must be %q or %q", ErrInvalidConfig, RunnerLocal, RunnerSSH)
	}
	return nil
}

// validateWorkDirs keeps Prepare away from anything it must not remove: a
// working directory may not hold root, an input document, or another
// working directory.
func (c Config) validateWorkDirs() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("%w: root: %v", ErrInvalidConfig, err)
	}
	protected := []string{root}
	for _, p := range []string{c.RegistrationTemplate, c.AuthenticationTemplate, c.Library} {
		abs, err := filepath.Abs(c.Path(p))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, p, err)
		}
		protected = append(protected, abs)
	}

	type workDir struct{ key, path string }
	var dirs []workDir
	for _, d := range []workDir{
		{"log_dir", c.LogDir},
		{"scratch_dir", c.ScratchDir},
		{"result_dir", c.ResultDir},
	} {
		abs, err := filepath.Abs(c.Path(d.path))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, d.key, err)
		}
		for _, p := range protected {
			if within(abs, p) {
				return fmt.Errorf("%w: %s %s would remove %s", ErrInvalidConfig, d.key, abs, p)
			}
		}
		for _, other := range dirs {
			if within(abs, other.path) || within(other.path, abs) {
				return fmt.Errorf("%w: %s and %s overlap at %s", ErrInvalidConfig, d.key, other.key, abs)
			}
		}
		dirs = append(dirs, workDir{d.key, abs})
	}
	return nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Path resolves p against Root unless it is absolute.
func (c Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// CatalogOptions maps the role catalog setting.
func (c Config) CatalogOptions() scenario.CatalogOptions {
	return scenario.CatalogOptions{CoarseRoles: c.RoleCatalog == RoleCatalogCoarse}
}

// LatticeOptions maps the enumeration settings.
func (c Config) LatticeOptions() scenario.LatticeOptions {
	return scenario.LatticeOptions{Analyze: c.Analyze, Roles: c.RoleLattice}
}

// SSHPassphrase reads the key passphrase from the configured environment
// variable; nil when none is configured or the variable is empty.
func (c Config) SSHPassphrase() []byte {
	name := strings.TrimSpace(c.SSH.PassphraseEnv)
	if name == "" {
		return nil
	}
	if v := os.Getenv(name); v != "" {
		return []byte(v)
	}
	return nil
}

// RemoteLibrary is the library argument for the configured runner.
func (c Config) RemoteLibrary() string {
	if c.Runner == RunnerSSH && strings.TrimSpace(c.SSH.RemoteLibrary) != "" {
		return c.SSH.RemoteLibrary
	}
	return c.Path(c.Library)
}

// CheckInputs verifies the template and library documents exist. The
// library is only checked locally when the oracle runs locally.
func (c Config) CheckInputs() error {
	inputs := []struct {
		key  string
		path string
	}{
		{"registration_template", c.RegistrationTemplate},
		{"authentication_template", c.AuthenticationTemplate},
	}
	if c.Runner == RunnerLocal {
		inputs = append(inputs, struct {
			key  string
			path string
		}{"library", c.Library})
	}
	for _, in := range inputs {
		path := c.Path(in.path)
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrMissingInput, in.key, path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s %s is a directory", ErrMissingInput, in.key, path)
		}
	}
	return nil
}

// Prepare resets the working directories: each is removed and recreated
// empty so no state carries over between runs.
func (c Config) Prepare() error {
	for _, dir := range []string{c.LogDir, c.ScratchDir, c.ResultDir} {
		path := c.Path(dir)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("config: reset %s: %w", path, err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", path, err)
		}
	}
	return nil
}
