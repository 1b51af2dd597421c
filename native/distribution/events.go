package distribution

import (
	"math/big"

	"tokendrop/core/events"
)

func newClaimedEvent(record *ClaimRecord) events.DistributionClaimed {
	if record == nil {
		return events.DistributionClaimed{}
	}
	return events.DistributionClaimed{
		ClaimID:    record.ID,
		Pool:       record.Pool.String(),
		Receiver:   record.Receiver,
		Amount:     copyBigInt(record.Amount),
		ValidUntil: record.ValidUntil,
		ClaimedAt:  record.ClaimedAt,
	}
}

func newMigrationStartedEvent(caller [20]byte, lock *MigrationLock) events.DistributionMigrationStarted {
	if lock == nil {
		return events.DistributionMigrationStarted{Caller: caller}
	}
	return events.DistributionMigrationStarted{
		Caller:        caller,
		LockTime:      lock.LockTime,
		MigrationTime: lock.MigrationTime,
	}
}

func newSweptEvent(caller, destination [20]byte, amount *big.Int, sweptAt int64) events.DistributionSwept {
	return events.DistributionSwept{
		Caller:      caller,
		Destination: destination,
		Amount:      copyBigInt(amount),
		SweptAt:     sweptAt,
	}
}
