package distribution

import (
	"errors"
	"fmt"
	"math/big"
)

// EmissionInterval is one step of the piecewise-constant mining emission
// schedule: Rate wei unlock per second for Duration seconds.
type EmissionInterval struct {
	Rate     *big.Int
	Duration uint64
}

// EmissionSchedule is the ordered interval list driving the mining pool
// unlock curve. The schedule is immutable after construction; the config
// loader checks that Total() equals the mining pool cap exactly.
type EmissionSchedule struct {
	Intervals []EmissionInterval
}

// Validate ensures the schedule is well formed.
func (s EmissionSchedule) Validate() error {
	if len(s.Intervals) == 0 {
		return errors.New("emission schedule requires at least one interval")
	}
	for i, interval := range s.Intervals {
		if interval.Rate == nil || interval.Rate.Sign() <= 0 {
			return fmt.Errorf("emission interval %d: rate must be positive", i)
		}
		if interval.Duration == 0 {
			return fmt.Errorf("emission interval %d: duration must be positive", i)
		}
	}
	return nil
}

// Total returns the exact sum of rate*duration over all intervals, which by
// construction equals the mining pool cap.
func (s EmissionSchedule) Total() *big.Int {
	total := big.NewInt(0)
	for _, interval := range s.Intervals {
		if interval.Rate == nil {
			continue
		}
		step := new(big.Int).Mul(interval.Rate, new(big.Int).SetUint64(interval.Duration))
		total.Add(total, step)
	}
	return total
}

// Unlocked maps elapsed seconds since launch to the cumulative unlocked
// amount. The curve is pure, deterministic and monotonically non-decreasing,
// saturating at Total() once elapsed time passes the final interval.
func (s EmissionSchedule) Unlocked(elapsed uint64) *big.Int {
	unlocked := big.NewInt(0)
	remaining := elapsed
	for _, interval := range s.Intervals {
		if remaining == 0 {
			break
		}
		if interval.Rate == nil {
			continue
		}
		span := interval.Duration
		if remaining < span {
			span = remaining
		}
		step := new(big.Int).Mul(interval.Rate, new(big.Int).SetUint64(span))
		unlocked.Add(unlocked, step)
		remaining -= span
	}
	return unlocked
}

// Clone returns a deep copy of the schedule.
func (s EmissionSchedule) Clone() EmissionSchedule {
	clone := EmissionSchedule{Intervals: make([]EmissionInterval, len(s.Intervals))}
	for i, interval := range s.Intervals {
		clone.Intervals[i] = EmissionInterval{
			Rate:     copyBigInt(interval.Rate),
			Duration: interval.Duration,
		}
	}
	return clone
}

// VestingTerms describes the linear unlock of the referral/staking pool:
// the full Cap vests from zero over Duration seconds.
type VestingTerms struct {
	Cap      *big.Int
	Duration uint64
}

// Validate ensures the terms are well formed.
func (v VestingTerms) Validate() error {
	if v.Cap == nil || v.Cap.Sign() <= 0 {
		return errors.New("vesting cap must be positive")
	}
	if v.Duration == 0 {
		return errors.New("vesting duration must be positive")
	}
	return nil
}

// Unlocked maps elapsed seconds since launch to the cumulative vested amount:
// cap * min(elapsed, duration) / duration. Integer division truncates, so the
// curve is stepwise at wei granularity but lands on Cap exactly at
// elapsed == Duration.
func (v VestingTerms) Unlocked(elapsed uint64) *big.Int {
	if v.Cap == nil || v.Duration == 0 {
		return big.NewInt(0)
	}
	if elapsed >= v.Duration {
		return new(big.Int).Set(v.Cap)
	}
	vested := new(big.Int).Mul(v.Cap, new(big.Int).SetUint64(elapsed))
	return vested.Div(vested, new(big.Int).SetUint64(v.Duration))
}

// Clone returns a deep copy of the terms.
func (v VestingTerms) Clone() VestingTerms {
	return VestingTerms{Cap: copyBigInt(v.Cap), Duration: v.Duration}
}
