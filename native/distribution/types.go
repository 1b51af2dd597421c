package distribution

import "math/big"

// ModuleName identifies the distribution module for the pause guard.
const ModuleName = "distribution"

// PoolKind identifies one of the two pre-funded allocation pools.
type PoolKind uint8

const (
	// PoolMining unlocks under the decaying emission schedule.
	PoolMining PoolKind = iota
	// PoolReferral unlocks linearly over the vesting duration.
	PoolReferral
)

func (p PoolKind) Valid() bool {
	switch p {
	case PoolMining, PoolReferral:
		return true
	default:
		return false
	}
}

func (p PoolKind) String() string {
	switch p {
	case PoolMining:
		return "mining"
	case PoolReferral:
		return "referral"
	default:
		return "unknown"
	}
}

// ParsePoolKind resolves the wire representation of a pool name.
func ParsePoolKind(s string) (PoolKind, bool) {
	switch s {
	case "mining":
		return PoolMining, true
	case "referral":
		return PoolReferral, true
	default:
		return 0, false
	}
}

// ClaimRecord captures the metadata persisted for every honored voucher.
// The claim identifier (keccak of the signature bytes) keys the record and
// carries the replay protection.
type ClaimRecord struct {
	ID         [32]byte
	Pool       PoolKind
	Receiver   [20]byte
	Claimant   [20]byte
	Amount     *big.Int
	ValidUntil int64
	ClaimedAt  int64
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (r *ClaimRecord) Copy() *ClaimRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Amount != nil {
		clone.Amount = new(big.Int).Set(r.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
