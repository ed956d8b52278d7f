package oracle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/CactiLab/FIDO2Verif/internal/logging"
	"github.com/CactiLab/FIDO2Verif/internal/materialize"
	"github.com/CactiLab/FIDO2Verif/internal/observability"
	"github.com/CactiLab/FIDO2Verif/internal/scenario"
)

// Workspace holds the scratch copy of a materialized document.
type Workspace interface {
	// Write stores doc under a path derived from d and returns that path.
	Write(d scenario.Descriptor, doc []byte) (string, error)
	// Release reads the stored document back and deletes it.
	Release(path string) ([]byte, error)
}

// Adjudication is the outcome of one two-pass session.
type Adjudication struct {
	Verdict     Verdict
	Invocations int
	// Variant is the document variant the verdict was taken from.
	Variant materialize.Variant
	// Document is the archived scratch content of the deciding pass.
	Document []byte
	// Tail is the trailing output of the deciding pass.
	Tail []byte
	// TimedOut reports whether the deciding pass hit the time budget.
	TimedOut bool
}

// Session adjudicates descriptors of one phase.
type Session struct {
	oracle    Oracle
	render    *materialize.Materializer
	workspace Workspace
}

func NewSession(o Oracle, m *materialize.Materializer, ws Workspace) *Session {
	return &Session{oracle: o, render: m, workspace: ws}
}

// Adjudicate runs the reduced document first and trusts an attack found
// there; anything else is settled by re-running on the full document. When
// a pass cannot be prepared the returned Adjudication is an OracleError
// carrying the invocations already made, and no scratch file is left behind.
func (s *Session) Adjudicate(ctx context.Context, d scenario.Descriptor) (Adjudication, error) {
	path, res, err := s.pass(ctx, d, materialize.Reduced)
	if err != nil {
		return Adjudication{Verdict: OracleError, Variant: materialize.Reduced}, err
	}
	res.Invocations = 1
	if res.Verdict != AttackFound {
		fullPath, full, err := s.pass(ctx, d, materialize.Full)
		if err != nil {
			s.discard(path)
			return Adjudication{Verdict: OracleError, Variant: materialize.Full, Invocations: 1}, err
		}
		full.Invocations = 2
		path, res = fullPath, full
	}

	doc, err := s.workspace.Release(path)
	if err != nil {
		return Adjudication{Verdict: OracleError, Variant: res.Variant, Invocations: res.Invocations},
			fmt.Errorf("oracle: release scratch %s: %w", path, err)
	}
	res.Document = doc
	return res, nil
}

func (s *Session) discard(path string) {
	if _, err := s.workspace.Release(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warnf("oracle.Session.discard scratch=%s err=%v", path, err)
	}
}

func (s *Session) pass(ctx context.Context, d scenario.Descriptor, v materialize.Variant) (string, Adjudication, error) {
	doc, err := s.render.Render(d, v)
	if err != nil {
		return "", Adjudication{}, err
	}
	path, err := s.workspace.Write(d, doc)
	if err != nil {
		return "", Adjudication{}, fmt.Errorf("oracle: write scratch: %w", err)
	}

	start := time.Now()
	out, runErr := s.oracle.Decide(ctx, Request{
		Descriptor: d,
		Variant:    v,
		Path:       path,
		Document:   doc,
	})
	elapsed := time.Since(start)

	verdict := verdictFor(out, runErr)
	observability.RecordOracleInvocation(d.Phase.Name, v.String(), verdict.String(), elapsed)
	if runErr != nil {
		logging.Warnf(
			"oracle.Session.pass run failed phase=%s key=%q variant=%s err=%v",
			d.Phase.Name, d.Key(), v, runErr,
		)
	}
	logging.Debugf(
		"oracle.Session.pass phase=%s key=%q variant=%s verdict=%s timed_out=%t elapsed=%s",
		d.Phase.Name, d.Key(), v, verdict, out.TimedOut, elapsed,
	)

	return path, Adjudication{
		Verdict:  verdict,
		Variant:  v,
		Tail:     Excerpt(out.Stdout),
		TimedOut: out.TimedOut,
	}, nil
}

// verdictFor classifies one invocation. A procedure that could not run, or
// exited non-zero on its own without a verdict, is an oracle error.
func verdictFor(out Output, runErr error) Verdict {
	if runErr != nil {
		return OracleError
	}
	v := Classify(out.Stdout)
	if v == DecisionTimeout && !out.TimedOut && out.ExitCode != 0 {
		return OracleError
	}
	return v
}
