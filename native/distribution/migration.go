package distribution

// MigrationLock records the irreversible clock freeze. It is created at most
// once, by the administrator, and never removed.
//
// LockTime is the moment the administrator started the migration; neither
// unlock curve accrues past it. MigrationTime is the earliest moment the
// remaining-balance sweep is permitted, at least the grace period after
// LockTime so accrued claims stay claimable before the sweep window opens.
// Swept records that the one-time remainder transfer has happened; the
// operative sweep guard is the remainder reaching zero.
type MigrationLock struct {
	LockTime      int64
	MigrationTime int64
	Swept         bool
}

// Active reports whether the clock freeze is in force.
func (m *MigrationLock) Active() bool {
	return m != nil && m.LockTime > 0
}

// Copy returns a value copy; MigrationLock has no pointer fields but the
// accessor mirrors the record discipline used elsewhere.
func (m *MigrationLock) Copy() *MigrationLock {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}
