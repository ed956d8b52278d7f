// Package template loads the protocol-model documents and their fixed
// insertion layouts.
package template

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/CactiLab/FIDO2Verif/internal/scenario"
)

var (
	ErrTemplateMissing  = errors.New("template: document missing")
	ErrTemplateTooShort = errors.New("template: document shorter than its insertion layout")
)

// Layout holds zero-based line indices. A clause spliced at index i lands
// immediately before template line i.
type Layout struct {
	Type          int
	Fields        int
	BaselineRoles int
	AuxRoleGuards int
	AuxRoles      int
}

var (
	RegistrationLayout = Layout{
		Type:          8,
		Fields:        17,
		BaselineRoles: 22,
		AuxRoleGuards: 31,
		AuxRoles:      38,
	}
	AuthenticationLayout = Layout{
		Type:          8,
		Fields:        23,
		BaselineRoles: 28,
		AuxRoleGuards: 37,
		AuxRoles:      44,
	}
)

// LayoutFor returns the fixed layout of a family.
func LayoutFor(f scenario.Family) (Layout, error) {
	switch f {
	case scenario.FamilyRegistration:
		return RegistrationLayout, nil
	case scenario.FamilyAuthentication:
		return AuthenticationLayout, nil
	default:
		return Layout{}, fmt.Errorf("template: no layout for family %q", f)
	}
}

func (l Layout) maxIndex() int {
	return max(l.Type, l.Fields, l.BaselineRoles, l.AuxRoleGuards, l.AuxRoles)
}

// Document is one read-only template, split into lines that keep their
// trailing newline.
type Document struct {
	Family scenario.Family
	Path   string
	Layout Layout
	lines  []string
}

// NewDocument wraps template text with a layout.
func NewDocument(f scenario.Family, path, content string, layout Layout) (Document, error) {
	lines := splitLines(content)
	if len(lines) <= layout.maxIndex() {
		return Document{}, fmt.Errorf(
			"%w: %s has %d lines, layout needs %d",
			ErrTemplateTooShort, path, len(lines), layout.maxIndex()+1,
		)
	}
	return Document{Family: f, Path: path, Layout: layout, lines: lines}, nil
}

func (d Document) Len() int {
	return len(d.lines)
}

// Line returns template line i.
func (d Document) Line(i int) string {
	return d.lines[i]
}

// Store holds one document per family.
type Store struct {
	docs map[scenario.Family]Document
}

// Load reads the registration and authentication templates.
func Load(registrationPath, authenticationPath string) (*Store, error) {
	s := &Store{docs: make(map[scenario.Family]Document, 2)}
	for _, item := range []struct {
		family scenario.Family
		path   string
	}{
		{scenario.FamilyRegistration, registrationPath},
		{scenario.FamilyAuthentication, authenticationPath},
	} {
		doc, err := loadDocument(item.family, item.path)
		if err != nil {
			return nil, err
		}
		s.docs[item.family] = doc
	}
	return s, nil
}

// NewStore builds a store from already constructed documents.
func NewStore(docs ...Document) *Store {
	s := &Store{docs: make(map[scenario.Family]Document, len(docs))}
	for _, d := range docs {
		s.docs[d.Family] = d
	}
	return s
}

// For returns the template of a family.
func (s *Store) For(f scenario.Family) (Document, error) {
	doc, ok := s.docs[f]
	if !ok {
		return Document{}, fmt.Errorf("%w: family %q", ErrTemplateMissing, f)
	}
	return doc, nil
}

func loadDocument(f scenario.Family, path string) (Document, error) {
	layout, err := LayoutFor(f)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrTemplateMissing, path)
		}
		return Document{}, fmt.Errorf("template load failed (%s): %w", path, err)
	}
	return NewDocument(f, path, string(data), layout)
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
