package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CactiLab/FIDO2Verif/internal/scenario"
	"github.com/CactiLab/FIDO2Verif/internal/testutil/testlog"
)

func numbered(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "(* line %02d *)\n", i)
	}
	return b.String()
}

func TestLoadBothFamilies(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	reg := filepath.Join(dir, "Reg.pv")
	auth := filepath.Join(dir, "Auth.pv")
	if err := os.WriteFile(reg, []byte(numbered(40)), 0o644); err != nil {
		t.Fatalf("write reg: %v", err)
	}
	if err := os.WriteFile(auth, []byte(numbered(46)), 0o644); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	store, err := Load(reg, auth)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	doc, err := store.For(scenario.FamilyAuthentication)
	if err != nil {
		t.Fatalf("for auth: %v", err)
	}
	if doc.Len() != 46 || doc.Layout != AuthenticationLayout {
		t.Fatalf("unexpected auth doc: len=%d layout=%+v", doc.Len(), doc.Layout)
	}
	if doc.Line(3) != "(* line 03 *)\n" {
		t.Fatalf("unexpected line: %q", doc.Line(3))
	}
}

func TestLoadMissingTemplate(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "Reg.pv"), filepath.Join(dir, "Auth.pv"))
	if !errors.Is(err, ErrTemplateMissing) {
		t.Fatalf("expected ErrTemplateMissing, got %v", err)
	}
}

func TestNewDocumentRejectsShortTemplate(t *testing.T) {
	testlog.Start(t)
	_, err := NewDocument(scenario.FamilyRegistration, "Reg.pv", numbered(38), RegistrationLayout)
	if !errors.Is(err, ErrTemplateTooShort) {
		t.Fatalf("expected ErrTemplateTooShort, got %v", err)
	}
	if _, err := NewDocument(scenario.FamilyRegistration, "Reg.pv", numbered(39), RegistrationLayout); err != nil {
		t.Fatalf("39 lines should cover the registration layout: %v", err)
	}
}

func TestSplitLinesKeepsNewlines(t *testing.T) {
	testlog.Start(t)
	got := splitLines("a\nb\nc")
	if len(got) != 3 || got[0] != "a\n" || got[2] != "c" {
		t.Fatalf("unexpected split: %q", got)
	}
	if splitLines("") != nil {
		t.Fatalf("expected nil for empty content")
	}
}
