package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"tokendrop/core/types"
	"tokendrop/crypto"
)

const (
	TypeDistributionClaimed          = "distribution.claimed"
	TypeDistributionMigrationStarted = "distribution.migration.started"
	TypeDistributionSwept            = "distribution.swept"
)

type DistributionClaimed struct {
	ClaimID    [32]byte
	Pool       string
	Receiver   [20]byte
	Amount     *big.Int
	ValidUntil int64
	ClaimedAt  int64
}

func (DistributionClaimed) EventType() string { return TypeDistributionClaimed }

func (e DistributionClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeDistributionClaimed,
		Attributes: map[string]string{
			"claimId":    hex.EncodeToString(e.ClaimID[:]),
			"pool":       e.Pool,
			"receiver":   crypto.NewAddress(crypto.TDPPrefix, e.Receiver[:]).String(),
			"amount":     formatAmount(e.Amount),
			"validUntil": strconv.FormatInt(e.ValidUntil, 10),
			"claimedAt":  strconv.FormatInt(e.ClaimedAt, 10),
		},
	}
}

type DistributionMigrationStarted struct {
	Caller        [20]byte
	LockTime      int64
	MigrationTime int64
}

func (DistributionMigrationStarted) EventType() string { return TypeDistributionMigrationStarted }

func (e DistributionMigrationStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeDistributionMigrationStarted,
		Attributes: map[string]string{
			"caller":        crypto.NewAddress(crypto.TDPPrefix, e.Caller[:]).String(),
			"lockTime":      strconv.FormatInt(e.LockTime, 10),
			"migrationTime": strconv.FormatInt(e.MigrationTime, 10),
		},
	}
}

type DistributionSwept struct {
	Caller      [20]byte
	Destination [20]byte
	Amount      *big.Int
	SweptAt     int64
}

func (DistributionSwept) EventType() string { return TypeDistributionSwept }

func (e DistributionSwept) Event() *types.Event {
	return &types.Event{
		Type: TypeDistributionSwept,
		Attributes: map[string]string{
			"caller":      crypto.NewAddress(crypto.TDPPrefix, e.Caller[:]).String(),
			"destination": crypto.NewAddress(crypto.TDPPrefix, e.Destination[:]).String(),
			"amount":      formatAmount(e.Amount),
			"sweptAt":     strconv.FormatInt(e.SweptAt, 10),
		},
	}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
