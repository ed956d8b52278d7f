// Package materialize splices scenario clauses into a protocol template.
package materialize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/CactiLab/FIDO2Verif/internal/scenario"
	"github.com/CactiLab/FIDO2Verif/internal/template"
)

// Variant selects the full document or its replication-stripped reduction.
type Variant int

const (
	// Reduced drops the replication operator from every template line. It only
	// removes behaviors, so an attack found here is an attack on Full.
	Reduced Variant = iota
	Full
)

func (v Variant) String() string {
	switch v {
	case Reduced:
		return "reduced"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

const replication = "!"

// Materializer renders descriptors of one phase against its template.
type Materializer struct {
	doc      template.Document
	auxRoles [2]string
}

func New(doc template.Document, cat scenario.Catalog) *Materializer {
	return &Materializer{doc: doc, auxRoles: cat.AuxRoles}
}

// Render produces the document for d. The query assertion comes first; the
// template follows with scenario clauses spliced before their layout lines.
func (m *Materializer) Render(d scenario.Descriptor, v Variant) ([]byte, error) {
	if d.Phase.Family != "" && d.Phase.Family != m.doc.Family {
		return nil, fmt.Errorf(
			"materialize: phase %q belongs to %s, template is %s",
			d.Phase.Name, d.Phase.Family, m.doc.Family,
		)
	}

	layout := m.doc.Layout
	baseline := d.Mode.Baseline()

	var buf bytes.Buffer
	buf.WriteString(d.Query.Assertion)
	for i := 0; i < m.doc.Len(); i++ {
		if i == layout.Type {
			buf.WriteString(d.Mode.Clause)
			buf.WriteString(d.Type.Clause)
		}
		if i == layout.Fields {
			buf.WriteString(d.Fields.Clauses)
		}
		if i == layout.BaselineRoles && baseline {
			buf.WriteString(d.Roles.Clauses)
		}
		if i == layout.AuxRoleGuards && !baseline {
			if d.Roles.Indices.Has(0) {
				buf.WriteString(m.auxRoles[0])
			}
			if d.Roles.Indices.Has(1) {
				buf.WriteString(m.auxRoles[1])
			}
		}
		if i == layout.AuxRoles && !baseline {
			buf.WriteString(d.Roles.Clauses)
		}

		line := m.doc.Line(i)
		if v == Reduced {
			line = strings.ReplaceAll(line, replication, "")
		}
		buf.WriteString(line)
	}
	return buf.Bytes(), nil
}
