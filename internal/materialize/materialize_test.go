package materialize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/CactiLab/FIDO2Verif/internal/logging"
	"github.com/CactiLab/FIDO2Verif/internal/scenario"
	"github.com/CactiLab/FIDO2Verif/internal/template"
	"github.com/CactiLab/FIDO2Verif/internal/testutil/testlog"
)

func registrationDoc(t *testing.T) template.Document {
	t.Helper()
	var b strings.Builder
	for i := 0; i < 40; i++ {
		if i%10 == 5 {
			fmt.Fprintf(&b, "!L%02d\n", i)
			continue
		}
		fmt.Fprintf(&b, "L%02d\n", i)
	}
	doc, err := template.NewDocument(scenario.FamilyRegistration, "Reg.pv", b.String(), template.RegistrationLayout)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}

func descriptor(mode scenario.AuxiliaryMode, roles scenario.IndexSet) scenario.Descriptor {
	return scenario.Descriptor{
		Phase: scenario.Phase{Name: "reg_client", Family: scenario.FamilyRegistration},
		Type:  scenario.AuthenticatorType{Name: "reg_client", Clause: "TYPE\n"},
		Mode:  mode,
		Query: scenario.Query{Name: "S-x", Assertion: "QUERY\n"},
		Fields: scenario.FieldSubset{
			Indices: scenario.NewIndexSet(0),
			Clauses: "FIELDS\n",
		},
		Roles: scenario.RoleSubset{Indices: roles, Clauses: "ROLES\n"},
	}
}

var catalog = scenario.Catalog{AuxRoles: [2]string{"AUX0\n", "AUX1\n"}}

func lines(b []byte) []string {
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func indexOf(t *testing.T, all []string, want string) int {
	t.Helper()
	for i, l := range all {
		if l == want {
			return i
		}
	}
	t.Fatalf("line %q not found", want)
	return -1
}

func TestRenderBaselineSplicesAtLayout(t *testing.T) {
	testlog.Start(t)
	m := New(registrationDoc(t), catalog)
	out, err := m.Render(descriptor(scenario.AuxiliaryMode{Name: scenario.BaselineModeName, Clause: "MODE\n"}, scenario.NewIndexSet(0, 1)), Full)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got := lines(out)
	if got[0] != "QUERY" {
		t.Fatalf("query not prepended: %q", got[0])
	}

	mode := indexOf(t, got, "MODE")
	if got[mode+1] != "TYPE" || got[mode+2] != "L08" {
		t.Fatalf("mode/type not spliced before L08: %q", got[mode:mode+3])
	}
	if got[indexOf(t, got, "FIELDS")+1] != "L17" {
		t.Fatalf("fields not spliced before L17")
	}
	if got[indexOf(t, got, "ROLES")+1] != "L22" {
		t.Fatalf("roles not spliced before L22")
	}
	if strings.Contains(string(out), "AUX") {
		t.Fatalf("aux role clauses must not appear in baseline mode")
	}
	if !strings.Contains(string(out), "!L15\n") {
		t.Fatalf("full variant must keep replication")
	}
	if len(got) != 1+40+4 {
		t.Fatalf("unexpected line count: %d", len(got))
	}
	logging.Logf("materialize/baseline: %d lines rendered", len(got))
}

func TestRenderAuxModeSplitsRoles(t *testing.T) {
	testlog.Start(t)
	m := New(registrationDoc(t), catalog)
	out, err := m.Render(descriptor(scenario.AuxiliaryMode{Name: "setPIN", Clause: "MODE\n"}, scenario.NewIndexSet(1, 3)), Full)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got := lines(out)
	if strings.Contains(string(out), "AUX0") {
		t.Fatalf("AUX0 requires role 0")
	}
	if got[indexOf(t, got, "AUX1")+1] != "L31" {
		t.Fatalf("aux guard not spliced before L31")
	}
	if got[indexOf(t, got, "ROLES")+1] != "L38" {
		t.Fatalf("roles not spliced before L38")
	}
}

func TestRenderReducedStripsReplication(t *testing.T) {
	testlog.Start(t)
	m := New(registrationDoc(t), catalog)
	d := descriptor(scenario.AuxiliaryMode{Name: scenario.BaselineModeName}, scenario.NewIndexSet())
	d.Roles.Clauses = "!spliced\n"
	out, err := m.Render(d, Reduced)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(out), "!L") {
		t.Fatalf("reduced variant kept replication: %q", out)
	}
	if !strings.Contains(string(out), "\nL15\n") {
		t.Fatalf("stripped line missing")
	}
	if !strings.Contains(string(out), "!spliced\n") {
		t.Fatalf("spliced clauses are not template lines and stay untouched")
	}
}

func TestRenderRejectsFamilyMismatch(t *testing.T) {
	testlog.Start(t)
	m := New(registrationDoc(t), catalog)
	d := descriptor(scenario.AuxiliaryMode{Name: scenario.BaselineModeName}, 0)
	d.Phase.Family = scenario.FamilyAuthentication
	if _, err := m.Render(d, Full); err == nil {
		t.Fatalf("expected family mismatch error")
	}
}
