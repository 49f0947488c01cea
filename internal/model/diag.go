// # internal/model/diag.go
package model

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Diagnostic is a recorded, non-fatal observation attached to a node and
// mirrored on the tree root. Reference-level failures never abort a load;
// they end up here.
type Diagnostic struct {
	Severity Severity
	Code     string
	Object   string
	Location Location
	Message  string
}

// Diagnostic codes emitted by the ingest/resolve/linearize passes.
const (
	DiagDuplicateModule       = "duplicate-module"
	DiagDuplicatePackageWins  = "duplicate-package-wins"
	DiagNonLiteralAll         = "non-literal-all"
	DiagAllEntryMissing       = "all-entry-missing"
	DiagCyclicWildcard        = "cyclic-wildcard"
	DiagWildcardUnknownModule = "wildcard-unknown-module"
	DiagConditionalChoice     = "conditional-choice"
	DiagInconsistentHierarchy = "inconsistent-hierarchy"
)
