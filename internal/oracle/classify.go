package oracle

import "bytes"

// Divider is the rule the decision procedure prints around its summary.
const Divider = "--------------------------------------------------------------"

// ExcerptSize is how much trailing output is scanned when no summary block
// exists, and how much is archived with a result.
const ExcerptSize = 1000

// dividerSlack keeps the closing divider out of the search so the summary
// block opener is found instead.
const dividerSlack = 10

var (
	markerTraceFound = []byte("a trace has been found.")
	markerTrace      = []byte("trace")
	markerError      = []byte("error")
	markerFalse      = []byte("false")
	markerHypothesis = []byte("hypothesis:")
	markerProve      = []byte("prove")
	markerTrue       = []byte("true")
)

// Segment returns the final verdict block: everything from the last divider
// that starts before the closing one, without the final byte. It returns nil
// when no such divider exists.
func Segment(stdout []byte) []byte {
	if len(stdout) <= dividerSlack {
		return nil
	}
	i := bytes.LastIndex(stdout[:len(stdout)-dividerSlack], []byte(Divider))
	if i < 0 {
		return nil
	}
	return stdout[i : len(stdout)-1]
}

// Excerpt returns the trailing output, up to ExcerptSize bytes minus the final byte.
func Excerpt(stdout []byte) []byte {
	if len(stdout) == 0 {
		return nil
	}
	start := max(len(stdout)-ExcerptSize, 0)
	return stdout[start : len(stdout)-1]
}

// Classify classifies raw decision procedure output.
func Classify(stdout []byte) Verdict {
	return ClassifySegment(Segment(stdout), stdout)
}

// ClassifySegment applies the fixed-priority classification table to a
// verdict segment, falling back to the raw output tail when the segment is
// empty.
func ClassifySegment(segment, raw []byte) Verdict {
	if len(segment) == 0 {
		tail := Excerpt(raw)
		switch {
		case bytes.Contains(tail, markerTraceFound):
			return AttackFound
		case bytes.Contains(tail, markerTrace):
			return InconclusiveTrace
		default:
			return DecisionTimeout
		}
	}

	switch {
	case bytes.Contains(segment, markerError):
		return OracleError
	case bytes.Contains(segment, markerFalse):
		return AttackFound
	case bytes.Contains(segment, markerHypothesis):
		return InconclusiveTrace
	case bytes.Contains(segment, markerProve):
		return OpenGoal
	case bytes.Contains(segment, markerTrue):
		return SecureProved
	default:
		return DecisionTimeout
	}
}
