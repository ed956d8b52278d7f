package scenario

import (
	"fmt"
	"strings"
)

// AnalyzeMode selects how field subsets are enumerated.
type AnalyzeMode string

const (
	// AnalyzeFull enumerates the full field power set.
	AnalyzeFull AnalyzeMode = "full"
	// AnalyzeSimple enumerates only the no-leak scenario.
	AnalyzeSimple AnalyzeMode = "simple"
)

// RoleLattice selects how role subsets are enumerated.
type RoleLattice string

const (
	// RolePowerSet enumerates every role subset.
	RolePowerSet RoleLattice = "powerset"
	// RolePrefix enumerates increasing catalog prefixes only. It is an
	// over-approximate sweep and must be selected explicitly.
	RolePrefix RoleLattice = "prefix"
)

// NoLeakClause is the field clause spliced in simple analysis mode.
const NoLeakClause = "(* no fields being compromised *)\n"

// ParseAnalyzeMode accepts "full" and "simple"; empty means full.
func ParseAnalyzeMode(raw string) (AnalyzeMode, error) {
	switch AnalyzeMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AnalyzeFull:
		return AnalyzeFull, nil
	case AnalyzeSimple:
		return AnalyzeSimple, nil
	default:
		return "", fmt.Errorf("scenario: unknown analyze mode %q (expected full or simple)", raw)
	}
}

// ParseRoleLattice accepts "powerset" and "prefix"; empty means powerset.
func ParseRoleLattice(raw string) (RoleLattice, error) {
	switch RoleLattice(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RolePowerSet:
		return RolePowerSet, nil
	case RolePrefix:
		return RolePrefix, nil
	default:
		return "", fmt.Errorf("scenario: unknown role lattice %q (expected powerset or prefix)", raw)
	}
}

// LatticeOptions configures subset enumeration.
type LatticeOptions struct {
	Analyze AnalyzeMode
	Roles   RoleLattice
}

// ContextKey identifies one (type, mode, query, field subset) context by
// catalog position. Pruning state never crosses a context boundary.
type ContextKey struct {
	Type   int
	Mode   int
	Query  int
	Fields int
}

func (k ContextKey) String() string {
	return fmt.Sprintf("t%d/m%d/q%d/f%d", k.Type, k.Mode, k.Query, k.Fields)
}

// Descriptor is one fully specified point in the lattice.
type Descriptor struct {
	Phase   Phase
	Type    AuthenticatorType
	Mode    AuxiliaryMode
	Query   Query
	Fields  FieldSubset
	Roles   RoleSubset
	Context ContextKey
}

// Key is a short human-readable identity used in logs.
func (d Descriptor) Key() string {
	return strings.Join([]string{
		d.Phase.Name, d.Type.Name, d.Mode.Name, d.Query.Name, d.Fields.Name(), d.Roles.Name(),
	}, "/")
}

// Lattice lazily enumerates descriptors for one phase.
type Lattice struct {
	phase   Phase
	catalog Catalog
	fields  []FieldSubset
	roles   []RoleSubset

	cursor  ContextKey
	role    int
	started bool
	done    bool
}

// NewLattice prepares enumeration over a phase catalog.
func NewLattice(phase Phase, cat Catalog, opts LatticeOptions) (*Lattice, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	var fields []FieldSubset
	switch opts.Analyze {
	case "", AnalyzeFull:
		fields = fieldSubsets(cat.Fields, PowerSet(len(cat.Fields)))
	case AnalyzeSimple:
		fields = []FieldSubset{{Clauses: NoLeakClause}}
	default:
		return nil, fmt.Errorf("scenario: unknown analyze mode %q", opts.Analyze)
	}

	var roles []RoleSubset
	switch opts.Roles {
	case "", RolePowerSet:
		roles = roleSubsets(cat.Roles, PowerSet(len(cat.Roles)))
	case RolePrefix:
		roles = roleSubsets(cat.Roles, Prefixes(len(cat.Roles)))
	default:
		return nil, fmt.Errorf("scenario: unknown role lattice %q", opts.Roles)
	}

	return &Lattice{
		phase:   phase,
		catalog: cat,
		fields:  fields,
		roles:   roles,
	}, nil
}

// FieldSubsets returns field subsets in enumeration order.
func (l *Lattice) FieldSubsets() []FieldSubset {
	out := make([]FieldSubset, len(l.fields))
	copy(out, l.fields)
	return out
}

// RoleSubsets returns role subsets in enumeration order.
func (l *Lattice) RoleSubsets() []RoleSubset {
	out := make([]RoleSubset, len(l.roles))
	copy(out, l.roles)
	return out
}

// Size is the total number of descriptors the lattice yields.
func (l *Lattice) Size() int {
	return len(l.catalog.Types) * len(l.catalog.Modes) * len(l.catalog.Queries) *
		len(l.fields) * len(l.roles)
}

// Next yields the next descriptor, or false once the lattice is exhausted.
func (l *Lattice) Next() (Descriptor, bool) {
	if l.done {
		return Descriptor{}, false
	}
	if !l.started {
		l.started = true
	} else if !l.advance() {
		l.done = true
		return Descriptor{}, false
	}
	return l.current(), true
}

// advance moves the innermost cursor first and carries outward.
func (l *Lattice) advance() bool {
	if l.role < len(l.roles)-1 {
		l.role++
		return true
	}
	l.role = 0

	if l.cursor.Fields < len(l.fields)-1 {
		l.cursor.Fields++
		return true
	}
	l.cursor.Fields = 0

	if l.cursor.Query < len(l.catalog.Queries)-1 {
		l.cursor.Query++
		return true
	}
	l.cursor.Query = 0

	if l.cursor.Mode < len(l.catalog.Modes)-1 {
		l.cursor.Mode++
		return true
	}
	l.cursor.Mode = 0

	if l.cursor.Type < len(l.catalog.Types)-1 {
		l.cursor.Type++
		return true
	}
	return false
}

func (l *Lattice) current() Descriptor {
	return Descriptor{
		Phase:   l.phase,
		Type:    l.catalog.Types[l.cursor.Type],
		Mode:    l.catalog.Modes[l.cursor.Mode],
		Query:   l.catalog.Queries[l.cursor.Query],
		Fields:  l.fields[l.cursor.Fields],
		Roles:   l.roles[l.role],
		Context: l.cursor,
	}
}
