// Package errcode defines the sentinel errors and numeric wire codes the
// rule engine surfaces to operators, mirroring the error kinds described by
// the rule store and alert state machine contracts.
package errcode

import "errors"

// Sentinel errors returned by the rule store, factory and alert state
// machine. Wrap with fmt.Errorf("...: %w", Err...) to add context; Code
// still resolves through errors.Is.
var (
	ErrJSON                = errors.New("json_error")
	ErrDuplicate           = errors.New("duplicate")
	ErrNameConflict        = errors.New("name_conflict")
	ErrNotFound            = errors.New("not_found")
	ErrBadStatus           = errors.New("bad_status")
	ErrScript              = errors.New("script_error")
	ErrSemantic            = errors.New("semantic_error")
	ErrPersistence         = errors.New("persistence_error")
	ErrRejectedSuitability = errors.New("rejected_by_suitability")
)

// Code returns the numeric wire code for err, or 0 if err does not match any
// known sentinel. Matches the widest (most specific) sentinel first.
func Code(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrJSON):
		return -1
	case errors.Is(err, ErrDuplicate):
		return -2
	case errors.Is(err, ErrNameConflict):
		return -3
	case errors.Is(err, ErrNotFound):
		return -4
	case errors.Is(err, ErrBadStatus):
		return -5
	case errors.Is(err, ErrScript):
		return -5
	case errors.Is(err, ErrSemantic):
		return -1
	case errors.Is(err, ErrPersistence):
		return -6
	case errors.Is(err, ErrRejectedSuitability):
		return -100
	default:
		return 0
	}
}
