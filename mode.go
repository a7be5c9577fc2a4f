package brainy

import "sync/atomic"

// Mode enforces per-role operation allowances (§4.J): reader rejects
// mutation, writer rejects search unless explicitly allowed, hybrid
// permits everything. A separate, orthogonal Frozen flag disables even
// internal bookkeeping (statistics writes, change-log polling).
type Mode struct {
	role         Role
	allowSearch  bool // writer-role opt-in to permit search anyway
	frozen       atomic.Bool
}

// NewMode builds a Mode for the given role.
func NewMode(role Role, allowSearchOnWriter bool) *Mode {
	return &Mode{role: role, allowSearch: allowSearchOnWriter}
}

// Role returns the current operational role.
func (m *Mode) Role() Role { return m.role }

// Frozen reports whether the frozen flag is set.
func (m *Mode) Frozen() bool { return m.frozen.Load() }

// SetFrozen sets or clears the frozen flag.
func (m *Mode) SetFrozen(v bool) { m.frozen.Store(v) }

// CheckMutate returns ErrFrozen or ErrReadOnly if the current mode
// disallows add/update/delete/clear operations.
func (m *Mode) CheckMutate(op string) error {
	if m.frozen.Load() {
		return wrapErr(op, KindFrozen, "", nil)
	}
	if m.role == RoleReader {
		return wrapErr(op, KindReadOnly, "", nil)
	}
	return nil
}

// CheckSearch returns ErrWriteOnly if the current mode disallows search
// (a writer instance, unless it explicitly opted in).
func (m *Mode) CheckSearch(op string) error {
	if m.role == RoleWriter && !m.allowSearch {
		return wrapErr(op, KindWriteOnly, "", nil)
	}
	return nil
}

// CheckBookkeeping returns ErrFrozen if internal bookkeeping (statistics
// flush, change-log polling) is disallowed.
func (m *Mode) CheckBookkeeping(op string) error {
	if m.frozen.Load() {
		return wrapErr(op, KindFrozen, "", nil)
	}
	return nil
}
