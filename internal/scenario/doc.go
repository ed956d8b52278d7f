// Package scenario owns the scenario lattice model.
//
// Ownership boundary:
// - phase identifiers and their dimension catalogs
//
// - field and role subsets with their index sets
//
// - lazy descriptor enumeration in fixed nested order
//
// Enumeration order (outer -> inner):
// - authenticator type -> auxiliary mode -> query -> field subset -> role subset
//
// - both subset sequences run from the full set down to the empty set.
//
// Catalog values are plain tagged data (name + document clause). Nothing here
// talks to the decision procedure or the filesystem.
package scenario
