package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/CactiLab/FIDO2Verif/internal/config"
	"github.com/CactiLab/FIDO2Verif/internal/logging"
	"github.com/CactiLab/FIDO2Verif/internal/oracle"
	"github.com/CactiLab/FIDO2Verif/internal/orchestrator"
	"github.com/CactiLab/FIDO2Verif/internal/scenario"
	"github.com/CactiLab/FIDO2Verif/internal/status"
	"github.com/CactiLab/FIDO2Verif/internal/template"
	"github.com/CactiLab/FIDO2Verif/internal/tools"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	switch {
	case errors.Is(err, errHelp):
		printUsage(stdout)
		return exitOK
	case err != nil:
		fmt.Fprintf(stderr, "fido2verif: %v\n", err)
		printUsage(stderr)
		return exitUsage
	}

	logging.ConfigureRuntime()

	cfg, err := resolveConfig(opts)
	if err != nil {
		logging.Errorf("fido2verif config failed err=%v", err)
		return exitFailure
	}
	if err := cfg.CheckInputs(); err != nil {
		logging.Errorf("fido2verif input check failed err=%v", err)
		return exitFailure
	}
	phases, err := scenario.SelectPhases(cfg.Phases)
	if err != nil {
		logging.Errorf("fido2verif phase selection failed err=%v", err)
		return exitFailure
	}
	if err := cfg.Prepare(); err != nil {
		logging.Errorf("fido2verif workspace prepare failed err=%v", err)
		return exitFailure
	}
	templates, err := template.Load(cfg.Path(cfg.RegistrationTemplate), cfg.Path(cfg.AuthenticationTemplate))
	if err != nil {
		logging.Errorf("fido2verif template load failed err=%v", err)
		return exitFailure
	}

	pv := oracle.ProVerif{
		Runner:  newRunner(cfg),
		Binary:  cfg.OracleBinary,
		Library: cfg.RemoteLibrary(),
		Timeout: cfg.OracleTimeout,
		Remote:  cfg.Runner == config.RunnerSSH,
	}
	if err := pv.Validate(); err != nil {
		logging.Errorf("fido2verif oracle invalid err=%v", err)
		return exitFailure
	}

	runID := uuid.NewString()
	orch, err := orchestrator.New(orchestrator.Options{
		RunID:      runID,
		Lattice:    cfg.LatticeOptions(),
		Catalog:    cfg.CatalogOptions(),
		LogDir:     cfg.Path(cfg.LogDir),
		ResultDir:  cfg.Path(cfg.ResultDir),
		ScratchDir: cfg.Path(cfg.ScratchDir),
	}, templates, pv)
	if err != nil {
		logging.Errorf("fido2verif orchestrator failed err=%v", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.StatusAddr != "" {
		srv := status.New(status.Options{
			RunID:       runID,
			Addr:        cfg.StatusAddr,
			CorsOrigins: cfg.CorsOrigins,
			Token:       cfg.StatusToken,
		}, orch)
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logging.Warnf("fido2verif status server stopped err=%v", err)
			}
		}()
	}

	logging.Infof(
		"fido2verif run start run_id=%s phases=%d analyze=%s roles=%s runner=%s",
		runID, len(phases), cfg.Analyze, cfg.RoleLattice, cfg.Runner,
	)
	if err := orch.Run(ctx, phases); err != nil {
		logging.Errorf("fido2verif run failed run_id=%s err=%v", runID, err)
		return exitFailure
	}
	if ctx.Err() != nil {
		logging.Warnf("fido2verif run interrupted run_id=%s", runID)
		return exitFailure
	}
	logging.Infof("fido2verif run done run_id=%s results=%s", runID, cfg.Path(cfg.ResultDir))
	return exitOK
}

// resolveConfig applies defaults, then the config file, then the command
// line.
func resolveConfig(opts cliOptions) (config.Config, error) {
	cfg := config.Default(opts.root)
	path := opts.configPath
	if path == "" {
		candidate := cfg.Path("config.toml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		loaded, err := config.Load(path, opts.root)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
		logging.Infof("fido2verif config loaded path=%s", path)
	}

	if opts.rootSet {
		cfg.Root = opts.root
	}
	if len(opts.targets) > 0 {
		cfg.Phases = append([]string(nil), opts.targets...)
	}
	if opts.simple {
		cfg.Analyze = scenario.AnalyzeSimple
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newRunner(cfg config.Config) tools.CommandRunner {
	if cfg.Runner != config.RunnerSSH {
		return tools.ExecRunner{}
	}
	return tools.SSHRunner{
		Host:                        cfg.SSH.Host,
		Port:                        cfg.SSH.Port,
		User:                        cfg.SSH.User,
		KeyPath:                     cfg.SSH.KeyPath,
		Passphrase:                  cfg.SSHPassphrase(),
		KnownHostsPath:              cfg.SSH.KnownHostsPath,
		InsecureSkipHostKeyChecking: cfg.SSH.InsecureIgnoreHostKey,
		Timeout:                     cfg.SSH.DialTimeout,
	}
}
