package scenario

import "fmt"

// AuthenticatorType pins the storage mode (and, for authentication, the
// transaction variant) of a scenario.
type AuthenticatorType struct {
	Name   string
	Clause string
}

// AuxiliaryMode fixes the PIN/token sub-protocol state machine mode.
type AuxiliaryMode struct {
	Name   string
	Clause string
}

// BaselineModeName is the auxiliary mode with no sub-protocol running.
const BaselineModeName = "noCTAP"

// Baseline reports whether the mode runs without the auxiliary sub-protocol.
func (m AuxiliaryMode) Baseline() bool {
	return m.Name == BaselineModeName
}

// Query is one security property assertion.
type Query struct {
	Name      string
	Assertion string
}

// Catalog is the fixed set of dimensions explored for one phase.
type Catalog struct {
	Types   []AuthenticatorType
	Modes   []AuxiliaryMode
	Queries []Query

	// Fields are leak directives, each exposing one secret on the public channel.
	Fields []string

	// Roles are adversary stand-ins, each replacing one honest process.
	Roles []string

	// AuxRoles are the sub-protocol role clauses spliced when the first and
	// second role-catalog entries are compromised under a non-baseline mode.
	AuxRoles [2]string
}

// CatalogOptions selects catalog variants.
type CatalogOptions struct {
	// CoarseRoles swaps the per-process role catalog for the three-entry
	// malicious authenticator / client / relying-party catalog.
	CoarseRoles bool
}

// Validate checks the catalog sizes the lattice can enumerate.
func (c Catalog) Validate() error {
	if len(c.Types) == 0 || len(c.Modes) == 0 || len(c.Queries) == 0 {
		return fmt.Errorf("scenario: catalog needs at least one type, mode and query")
	}
	if len(c.Fields) > MaxCatalogSize {
		return fmt.Errorf("%w: %d field directives", ErrCatalogTooLarge, len(c.Fields))
	}
	if len(c.Roles) > MaxCatalogSize {
		return fmt.Errorf("%w: %d role clauses", ErrCatalogTooLarge, len(c.Roles))
	}
	return nil
}

var auxiliaryModes = []AuxiliaryMode{
	{Name: BaselineModeName, Clause: "let ctap_type = noCTAP in\n"},
	{Name: "setPIN", Clause: "let ctap_type = setPIN in\n"},
	{Name: "chgPIN", Clause: "let ctap_type = chgPIN in\n"},
	{Name: "getToken", Clause: "let ctap_type = getToken in\n"},
}

var auxRoleClauses = [2]string{
	"CTAP_Authnr(G, PIN, cP, ctap_type)|\n",
	"CTAP_Client(G, PIN, cP, ctap_type)|\n",
}

var baseQueries = []Query{
	{Name: "S-pintok", Assertion: "query secret PinToken.\n"},
	{Name: "S-cntr", Assertion: "query secret testcntr.\n"},
	{Name: "S-creid", Assertion: "query secret testcreid.\n"},
	{Name: "S-skau", Assertion: "query secret skau.\n"},
}

var (
	querySkat = Query{Name: "S-skat", Assertion: "query secret skat.\n"}
	queryWk   = Query{Name: "S-wk", Assertion: "query secret wk.\n"}
	queryA5   = Query{
		Name: "A5",
		Assertion: "query u:UserHandle, r:RpID, a:AAGUID, c:bitstring, pkau:spkey; " +
			"inj-event(Server_Finish_Reg(u,r,a,c,pkau)) ==> " +
			"inj-event(Client_Init_Reg(u,r)).\n",
	}
	queryA6 = Query{
		Name: "A6",
		Assertion: "query u:UserHandle, r:RpID, a:AAGUID, c:bitstring, pkau:spkey; " +
			"inj-event(Server_Finish_Reg(u,r,a,c,pkau)) ==> " +
			"inj-event(Authnr_Finish_Reg(u,r,a,c,pkau)).\n",
	}
	queryA1 = Query{
		Name: "A1",
		Assertion: "query u:UserHandle, r:RpID, a:AAGUID, c:bitstring;" +
			"inj-event(Server_Finish_Auth(u,r,a,c)) ==> " +
			"inj-event(Authnr_Finish_Auth(u,r,a,c)).\n",
	}
	queryA2 = Query{
		Name: "A2",
		Assertion: "query tr:Transaction; inj-event(Server_Finish_Tr(tr)) ==> " +
			"inj-event(Authnr_Finish_Tr(tr)).\n",
	}
)

const baseFieldDirective = "out(cP,wk);\n"

var registrationRoles = []string{
	"Reg_Authnr(aaguid, skat, pkat, wk, cP, au_type,ctap_type)|\n",
	"Reg_Client(uHandle, pWord, CR, cP, ctap_type)|\n",
	"Reg_Client(uHandle, pWord, cP, CA, ctap_type)|\n",
	"Reg_Client(uHandle, pWord, cP, cP, ctap_type)|\n",
	"Reg_Server(rpid, uHandle, pWord,cP)|\n",
}

var registrationCoarseRoles = []string{
	"Reg_Client(uHandle, pWord, CR, cP, ctap_type)| (*malicious-Authnr*)\n",
	"Reg_Authnr(aaguid, skat, pkat, wk, cP, au_type, ctap_type)" +
		"|Reg_Server(rpid, uHandle, pWord,cP)| (*malicious-Client*)\n",
	"Reg_Client(uHandle, pWord, cP, CA, ctap_type)| (*malicious-RP*)\n",
}

var authenticationRoles = []string{
	"Auth_Authnr(aaguid,wk,cP,tr_type,au_type,ctap_type)|\n",
	"Auth_Client(uHandle,CR,cP,tr_type,ctap_type)|\n",
	"Auth_Client(uHandle,cP,CA,tr_type,ctap_type)|\n",
	"Auth_Client(uHandle,cP,cP,tr_type,ctap_type)|\n",
	"Auth_Server(rpid,uHandle,Tr,cP,tr_type)| \n",
}

var authenticationCoarseRoles = []string{
	"Auth_Client(uHandle,CR,cP,tr_type,ctap_type)| (*malicious-Authnr*)\n",
	"Auth_Authnr(aaguid,wk,cP,tr_type, au_type,ctap_type)|" +
		"Auth_Server(rpid,uHandle,Tr,cP,tr_type)| (*malicious-Client*)\n",
	"Auth_Client(uHandle,cP,CA,tr_type,ctap_type)| (*malicious-RP*)\n",
}

// CatalogFor returns the dimension catalogs of a phase.
func CatalogFor(p Phase, opts CatalogOptions) (Catalog, error) {
	cat := Catalog{
		Modes:    cloneModes(auxiliaryModes),
		AuxRoles: auxRoleClauses,
	}

	switch p.Family {
	case FamilyRegistration:
		cat.Types = []AuthenticatorType{{
			Name:   p.Name,
			Clause: fmt.Sprintf("let au_type = %s in\n", p.Storage),
		}}
		cat.Fields = []string{baseFieldDirective, "out(cP,skat);\n"}
		cat.Roles = pickRoles(opts, registrationRoles, registrationCoarseRoles)
	case FamilyAuthentication:
		cat.Types = []AuthenticatorType{{
			Name:   p.Name,
			Clause: fmt.Sprintf("let au_type = %s in\nlet tr_type = %s in\n", p.Storage, p.Transaction),
		}}
		cat.Fields = []string{
			baseFieldDirective,
			"out(cP,skau);\n",
			"out(cP,authcntr);\n",
			"out(cP,creid);\n",
		}
		cat.Roles = pickRoles(opts, authenticationRoles, authenticationCoarseRoles)
	default:
		return Catalog{}, fmt.Errorf("%w: %q has no family", ErrUnknownPhase, p.Name)
	}

	queries, err := queriesFor(p)
	if err != nil {
		return Catalog{}, err
	}
	cat.Queries = queries
	return cat, nil
}

func queriesFor(p Phase) ([]Query, error) {
	out := make([]Query, 0, len(baseQueries)+4)
	out = append(out, baseQueries...)

	switch {
	case p.Family == FamilyRegistration && p.Storage == StorageClient:
		out = append(out, querySkat, queryA5, queryA6)
	case p.Family == FamilyRegistration && p.Storage == StorageServer:
		out = append(out, querySkat, queryWk, queryA5, queryA6)
	case p.Storage == StorageClient && p.Transaction == TransactionEmpty:
		out = append(out, queryA1)
	case p.Storage == StorageClient:
		out = append(out, Query{Name: "S-tr", Assertion: "query secret Tr.\n"}, queryA1, queryA2)
	case p.Storage == StorageServer && p.Transaction == TransactionEmpty:
		out = append(out, queryWk, queryA1)
	case p.Storage == StorageServer:
		out = append(out, queryWk, Query{Name: "S-tr", Assertion: "query secret tr.\n"}, queryA1, queryA2)
	default:
		return nil, fmt.Errorf("%w: no query catalog for %q", ErrUnknownPhase, p.Name)
	}
	return out, nil
}

func pickRoles(opts CatalogOptions, full, coarse []string) []string {
	src := full
	if opts.CoarseRoles {
		src = coarse
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func cloneModes(in []AuxiliaryMode) []AuxiliaryMode {
	out := make([]AuxiliaryMode, len(in))
	copy(out, in)
	return out
}
