package oracle

import "fmt"

// Verdict is the classified outcome of adjudicating one descriptor.
type Verdict int

const (
	DecisionTimeout Verdict = iota
	SecureProved
	AttackFound
	InconclusiveTrace
	OracleError
	OpenGoal
)

var verdictNames = map[Verdict]string{
	DecisionTimeout:   "DecisionTimeout",
	SecureProved:      "SecureProved",
	AttackFound:       "AttackFound",
	InconclusiveTrace: "InconclusiveTrace",
	OracleError:       "OracleError",
	OpenGoal:          "OpenGoal",
}

// short tags used in phase logs and artifact names
var verdictTags = map[Verdict]string{
	DecisionTimeout:   "tout",
	SecureProved:      "true",
	AttackFound:       "false",
	InconclusiveTrace: "trace",
	OracleError:       "error",
	OpenGoal:          "prove",
}

// Verdicts lists every verdict in a stable order.
func Verdicts() []Verdict {
	return []Verdict{SecureProved, AttackFound, InconclusiveTrace, OpenGoal, DecisionTimeout, OracleError}
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Tag is the short form written to phase logs and result names.
func (v Verdict) Tag() string {
	if tag, ok := verdictTags[v]; ok {
		return tag
	}
	return "unknown"
}

// Secure reports whether the verdict proves the property.
func (v Verdict) Secure() bool {
	return v == SecureProved
}

// Archived reports whether the verdict gets a result artifact. Attacks are
// only logged.
func (v Verdict) Archived() bool {
	return v != AttackFound
}
