package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CactiLab/FIDO2Verif/internal/logging"
	"github.com/CactiLab/FIDO2Verif/internal/materialize"
	"github.com/CactiLab/FIDO2Verif/internal/observability"
	"github.com/CactiLab/FIDO2Verif/internal/oracle"
	"github.com/CactiLab/FIDO2Verif/internal/pruner"
	"github.com/CactiLab/FIDO2Verif/internal/results"
	"github.com/CactiLab/FIDO2Verif/internal/scenario"
	"github.com/CactiLab/FIDO2Verif/internal/template"
)

var ErrInvalidOptions = errors.New("orchestrator: invalid options")

const outcomeSkipped = "skipped"

type Options struct {
	RunID      string
	Lattice    scenario.LatticeOptions
	Catalog    scenario.CatalogOptions
	LogDir     string
	ResultDir  string
	ScratchDir string
}

func (o Options) Validate() error {
	if o.LogDir == "" {
		return fmt.Errorf("%w: log dir required", ErrInvalidOptions)
	}
	if o.ResultDir == "" {
		return fmt.Errorf("%w: result dir required", ErrInvalidOptions)
	}
	if o.ScratchDir == "" {
		return fmt.Errorf("%w: scratch dir required", ErrInvalidOptions)
	}
	return nil
}

// Orchestrator drives the phase workers of one run.
type Orchestrator struct {
	opts      Options
	templates *template.Store
	oracle    oracle.Oracle

	catalogFor func(scenario.Phase) (scenario.Catalog, error)

	mu       sync.RWMutex
	order    []string
	progress map[string]*Progress
}

func New(opts Options, templates *template.Store, o oracle.Oracle) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if templates == nil || o == nil {
		return nil, fmt.Errorf("%w: templates and oracle required", ErrInvalidOptions)
	}
	return &Orchestrator{
		opts:      opts,
		templates: templates,
		oracle:    o,
		catalogFor: func(p scenario.Phase) (scenario.Catalog, error) {
			return scenario.CatalogFor(p, opts.Catalog)
		},
		progress: make(map[string]*Progress),
	}, nil
}

// Run starts one worker per phase and waits for all of them. Phase failures
// do not stop the other workers; they are joined into the returned error.
func (o *Orchestrator) Run(ctx context.Context, phases []scenario.Phase) error {
	for _, p := range phases {
		o.track(p.Name)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, p := range phases {
		wg.Add(1)
		go func(p scenario.Phase) {
			defer wg.Done()
			if _, err := o.RunPhase(ctx, p); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// RunPhase enumerates and adjudicates one phase to completion.
func (o *Orchestrator) RunPhase(ctx context.Context, p scenario.Phase) (results.Summary, error) {
	o.track(p.Name)
	summary, err := o.runPhase(ctx, p)
	o.finish(p.Name, err, summary.Canceled)
	if err != nil {
		logging.Errorf("orchestrator.RunPhase failed phase=%s err=%v", p.Name, err)
		return summary, fmt.Errorf("phase %s: %w", p.Name, err)
	}
	return summary, nil
}

func (o *Orchestrator) runPhase(ctx context.Context, p scenario.Phase) (results.Summary, error) {
	summary := results.Summary{
		RunID:       o.opts.RunID,
		Phase:       p.Name,
		Analyze:     string(o.opts.Lattice.Analyze),
		RoleLattice: string(o.opts.Lattice.Roles),
		StartedAt:   time.Now().UTC(),
		Verdicts:    make(map[string]int),
	}

	cat, err := o.catalogFor(p)
	if err != nil {
		return summary, err
	}
	lat, err := scenario.NewLattice(p, cat, o.opts.Lattice)
	if err != nil {
		return summary, err
	}
	doc, err := o.templates.For(p.Family)
	if err != nil {
		return summary, err
	}
	scratch, err := results.NewScratch(o.opts.ScratchDir)
	if err != nil {
		return summary, err
	}
	plog, err := results.OpenPhaseLog(o.opts.LogDir, p.Name)
	if err != nil {
		return summary, err
	}
	defer plog.Close()

	store := results.NewStore(o.opts.ResultDir)
	session := oracle.NewSession(o.oracle, materialize.New(doc, cat), scratch)
	secure := pruner.New()

	o.update(p.Name, func(pr *Progress) {
		pr.State = StateRunning
		pr.Total = lat.Size()
		pr.StartedAt = summary.StartedAt
	})
	logging.Infof(
		"orchestrator.RunPhase start phase=%s descriptors=%d log=%s",
		p.Name, lat.Size(), plog.Path(),
	)

	for seq := 0; ; seq++ {
		if ctx.Err() != nil {
			summary.Canceled = true
			break
		}
		d, ok := lat.Next()
		if !ok {
			break
		}
		o.update(p.Name, func(pr *Progress) { pr.Current = d.Key() })
		secure.Scope(d.Context)

		var line, outcome string
		if secure.Covered(d.Roles.Indices) {
			line = results.FormatSkipped(seq, d)
			outcome = outcomeSkipped
			summary.Skipped++
		} else {
			adj, err := session.Adjudicate(ctx, d)
			if ctx.Err() != nil {
				// a verdict taken while shutting down is not trustworthy
				summary.Canceled = true
				break
			}
			if err != nil {
				// the descriptor is settled as an oracle error; the phase goes on
				summary.Failures++
				adj.Tail = []byte(err.Error() + "\n")
				logging.Errorf("orchestrator.RunPhase adjudication failed phase=%s key=%q err=%v", p.Name, d.Key(), err)
			}
			summary.Invocations += adj.Invocations
			summary.Verdicts[adj.Verdict.String()]++
			if adj.Verdict.Secure() {
				secure.RecordSecure(d.Roles.Indices)
			}

			path, err := store.Write(seq, d, adj)
			switch {
			case err != nil:
				summary.WriteErrors++
				logging.Errorf("orchestrator.RunPhase artifact failed phase=%s key=%q err=%v", p.Name, d.Key(), err)
			case path != "":
				summary.Artifacts++
			}
			line = results.FormatAdjudicated(seq, d, adj.Verdict)
			outcome = adj.Verdict.String()
		}

		if err := plog.Append(line); err != nil {
			summary.WriteErrors++
			logging.Errorf("orchestrator.RunPhase log append failed phase=%s err=%v", p.Name, err)
		}
		summary.Descriptors++
		observability.RecordDescriptor(p.Name, outcome)
		logging.Debugf("orchestrator.RunPhase phase=%s seq=%d outcome=%s key=%q", p.Name, seq, outcome, d.Key())

		o.update(p.Name, func(pr *Progress) {
			pr.Visited = summary.Descriptors
			pr.Skipped = summary.Skipped
			pr.Invocations = summary.Invocations
			pr.Artifacts = summary.Artifacts
			pr.WriteErrors = summary.WriteErrors
			pr.Failures = summary.Failures
			if outcome != outcomeSkipped {
				pr.Verdicts[outcome]++
			}
		})
	}

	summary.FinishedAt = time.Now().UTC()
	if _, err := results.WriteSummary(o.opts.ResultDir, summary); err != nil {
		return summary, err
	}
	logging.Infof(
		"orchestrator.RunPhase done phase=%s visited=%d skipped=%d invocations=%d canceled=%t",
		p.Name, summary.Descriptors, summary.Skipped, summary.Invocations, summary.Canceled,
	)
	return summary, nil
}

// Snapshot returns the progress of every tracked phase in start order.
func (o *Orchestrator) Snapshot() []Progress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Progress, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.progress[name].clone())
	}
	return out
}

// Done reports whether every tracked phase has finished.
func (o *Orchestrator) Done() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, name := range o.order {
		if !o.progress[name].Finished() {
			return false
		}
	}
	return len(o.order) > 0
}

func (o *Orchestrator) track(phase string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.progress[phase]; ok {
		return
	}
	o.order = append(o.order, phase)
	o.progress[phase] = &Progress{
		Phase:    phase,
		State:    StatePending,
		Verdicts: make(map[string]int),
	}
}

func (o *Orchestrator) update(phase string, fn func(*Progress)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if pr, ok := o.progress[phase]; ok {
		fn(pr)
	}
}

func (o *Orchestrator) finish(phase string, err error, canceled bool) {
	o.update(phase, func(pr *Progress) {
		pr.Current = ""
		pr.FinishedAt = time.Now().UTC()
		switch {
		case err != nil:
			pr.State = StateFailed
			pr.Error = err.Error()
		case canceled:
			pr.State = StateCanceled
		default:
			pr.State = StateDone
		}
	})
}
