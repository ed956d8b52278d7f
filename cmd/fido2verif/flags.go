package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/CactiLab/FIDO2Verif/internal/scenario"
)

var errHelp = errors.New("help requested")

type cliOptions struct {
	targets    []string
	simple     bool
	configPath string
	root       string
	// rootSet reports an explicit -root, which outranks the config file.
	rootSet bool
}

// targetList collects -t values; unknown phases are kept aside so the
// caller can refuse to start any worker.
type targetList struct {
	names   []string
	unknown []string
}

func (l *targetList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(l.names, ",")
}

func (l *targetList) Set(v string) error {
	name := strings.TrimSpace(v)
	if _, err := scenario.LookupPhase(name); err != nil {
		l.unknown = append(l.unknown, name)
		return nil
	}
	l.names = append(l.names, name)
	return nil
}

// parseArgs reads the command line. Unknown options are reported on diag
// and skipped; an unknown phase is an error.
func parseArgs(args []string, diag io.Writer) (cliOptions, error) {
	var (
		opts    cliOptions
		targets targetList
		help    bool
	)
	fs := flag.NewFlagSet("fido2verif", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&help, "h", false, "show help")
	fs.BoolVar(&help, "help", false, "show help")
	fs.Var(&targets, "t", "phase to verify")
	fs.Var(&targets, "target", "phase to verify")
	fs.BoolVar(&opts.simple, "s", false, "assume no leaked fields")
	fs.BoolVar(&opts.simple, "simple", false, "assume no leaked fields")
	fs.StringVar(&opts.configPath, "config", "", "config file")
	fs.StringVar(&opts.root, "root", ".", "directory holding templates and working directories")

	rest := args
	for {
		err := fs.Parse(rest)
		if err == nil {
			break
		}
		fmt.Fprintf(diag, "fido2verif: wrong option ignored: %v\n", err)
		next := fs.Args()
		if len(next) > 0 && len(next) == len(rest) {
			// malformed flags are not consumed by the parser
			next = next[1:]
		}
		rest = next
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "root" {
			opts.rootSet = true
		}
	})
	if help {
		return cliOptions{}, errHelp
	}
	if len(targets.unknown) > 0 {
		return cliOptions{}, fmt.Errorf("wrong argument: %w: %s", scenario.ErrUnknownPhase, strings.Join(targets.unknown, ","))
	}
	for _, extra := range fs.Args() {
		fmt.Fprintf(diag, "fido2verif: unexpected argument ignored: %s\n", extra)
	}

	opts.targets = targets.names
	return opts, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: fido2verif [-h|-help] [-t|-target <phase>] [-s|-simple] [-config <path>] [-root <dir>]")
	fmt.Fprintln(w, "Options and arguments:")
	fmt.Fprintln(w, "  -h/-help       show this help")
	fmt.Fprintln(w, "  -s/-simple     analyze only scenarios without leaked fields (faster, incomplete)")
	fmt.Fprintln(w, "  -t/-target     verify one phase (repeatable); all phases when omitted")
	fmt.Fprintln(w, "  -config        config file (default <root>/config.toml when present)")
	fmt.Fprintln(w, "  -root          directory holding Reg.pv, Auth.pv and FIDO2.pvl")
	fmt.Fprintln(w, "  phases:")
	for _, p := range scenario.Phases() {
		fmt.Fprintf(w, "    %-16s %s\n", p.Name, p.Description)
	}
}
