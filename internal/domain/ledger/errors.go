package ledger

import "errors"

// Error taxonomy shared across the engine. Callers discriminate with
// errors.Is; everything else is wrapped context.
var (
	// ErrAmbiguousMatch means multiple candidates tied at top confidence.
	// Surfaced for manual review, never auto-resolved.
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrSplitNotFound means no member subset sums to the anchor within
	// tolerance. Members stay unmatched.
	ErrSplitNotFound = errors.New("no split subset within tolerance")

	// ErrNotASplit means the only viable group would have a single
	// member, which must collapse to a direct 1:1 match instead.
	ErrNotASplit = errors.New("degenerate single-member split")

	// ErrToleranceViolation means the caller supplied a negative or
	// absurd tolerance; rejected at the API boundary.
	ErrToleranceViolation = errors.New("invalid tolerance")

	// ErrDuplicateKey is raised when the natural-key unique constraint
	// fires. Importers treat it as "already imported", not a failure.
	ErrDuplicateKey = errors.New("duplicate natural key")

	// ErrRolledBack means the apply phase failed and the whole batch was
	// rolled back; nothing was partially applied.
	ErrRolledBack = errors.New("batch rolled back")
)
