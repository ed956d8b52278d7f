// Package pruner skips role subsets already covered by a proven-secure set.
//
// Security is assumed monotone in compromise: if a scenario is secure with a
// set of adversary-controlled roles, it is secure with any subset of them.
// Proofs never cross a (type, mode, query, field subset) context.
package pruner

import "github.com/CactiLab/FIDO2Verif/internal/scenario"

// Pruner holds the maximal secure role sets of the active context.
type Pruner struct {
	scope  scenario.ContextKey
	scoped bool
	secure []scenario.IndexSet
}

func New() *Pruner {
	return &Pruner{}
}

// Scope enters a context. Moving to a different context clears the antichain.
// It reports whether a reset happened.
func (p *Pruner) Scope(key scenario.ContextKey) bool {
	if p.scoped && p.scope == key {
		return false
	}
	p.scope = key
	p.scoped = true
	p.secure = p.secure[:0]
	return true
}

// Covered reports whether roles is a subset of a set proven secure in the
// current context.
func (p *Pruner) Covered(roles scenario.IndexSet) bool {
	for _, s := range p.secure {
		if roles.SubsetOf(s) {
			return true
		}
	}
	return false
}

// RecordSecure adds a proven-secure role set. Stored sets it covers are
// dropped so the antichain stays maximal.
func (p *Pruner) RecordSecure(roles scenario.IndexSet) {
	if p.Covered(roles) {
		return
	}
	kept := p.secure[:0]
	for _, s := range p.secure {
		if !s.SubsetOf(roles) {
			kept = append(kept, s)
		}
	}
	p.secure = append(kept, roles)
}

// Secure returns a copy of the current antichain.
func (p *Pruner) Secure() []scenario.IndexSet {
	out := make([]scenario.IndexSet, len(p.secure))
	copy(out, p.secure)
	return out
}

func (p *Pruner) Len() int {
	return len(p.secure)
}
