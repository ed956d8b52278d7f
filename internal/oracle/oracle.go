package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CactiLab/FIDO2Verif/internal/materialize"
	"github.com/CactiLab/FIDO2Verif/internal/scenario"
	"github.com/CactiLab/FIDO2Verif/internal/tools"
)

// DefaultTimeout is the wall-clock budget of one invocation.
const DefaultTimeout = 30 * time.Second

var ErrInvalidOracle = errors.New("oracle: invalid configuration")

// Request is one invocation of the decision procedure.
type Request struct {
	Descriptor scenario.Descriptor
	Variant    materialize.Variant
	// Path is the scratch copy of Document on the local filesystem.
	Path     string
	Document []byte
}

// Output is what the decision procedure produced before it exited or was
// killed.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int32
	TimedOut bool
}

// Oracle runs the external decision procedure. An error means the procedure
// could not be run at all; a timeout is reported through Output.TimedOut.
type Oracle interface {
	Decide(ctx context.Context, req Request) (Output, error)
}

// ProVerif invokes the proverif binary through a CommandRunner.
type ProVerif struct {
	Runner  tools.CommandRunner
	Binary  string
	Library string
	Timeout time.Duration

	// Remote streams the document on stdin instead of passing the local
	// scratch path, for runners that execute on another host.
	Remote bool
}

// Validate checks the fields required to build an invocation.
func (p ProVerif) Validate() error {
	if p.Runner == nil {
		return fmt.Errorf("%w: runner required", ErrInvalidOracle)
	}
	if strings.TrimSpace(p.Binary) == "" {
		return fmt.Errorf("%w: binary required", ErrInvalidOracle)
	}
	if strings.TrimSpace(p.Library) == "" {
		return fmt.Errorf("%w: library required", ErrInvalidOracle)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidOracle)
	}
	return nil
}

// Args returns the command line for req.
func (p ProVerif) Args(req Request) []string {
	if p.Remote {
		return []string{"-in", "pitype", "-lib", p.Library, "/dev/stdin"}
	}
	return []string{"-lib", p.Library, req.Path}
}

func (p ProVerif) Decide(ctx context.Context, req Request) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var stdin []byte
	if p.Remote {
		stdin = req.Document
	}

	stdout, stderr, code, err := p.Runner.Run(ctx, stdin, p.Binary, p.Args(req)...)
	out := Output{Stdout: stdout, Stderr: stderr, ExitCode: code}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		out.TimedOut = true
		return out, nil
	case err == nil:
		return out, nil
	case code > 0 && code != tools.ExitNotFound && code != tools.ExitUnavailable:
		// ran to completion and reported through its own output
		return out, nil
	default:
		return out, fmt.Errorf("oracle: run %s: %w", p.Binary, err)
	}
}
