// Package reserve computes the minimum balance an account must keep to stay
// stored, and how much of a balance is free to leave.
package reserve

import (
	"math"
	"math/bits"
)

const (
	// DefaultStorageOverhead is the per-account metadata charged on top of data.
	DefaultStorageOverhead = 128
	// DefaultLamportsPerByteYear is the default rent rate.
	DefaultLamportsPerByteYear = 3480
	// DefaultExemptionThreshold is the number of years of rent that must be held.
	DefaultExemptionThreshold = 2.0
)

// Oracle maps an account data size to its minimum balance.
type Oracle interface {
	MinimumBalance(size int) uint64
}

// RentSchedule is a rent-exemption Oracle.
type RentSchedule struct {
	StorageOverhead     uint64
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// DefaultSchedule returns the schedule used when nothing is configured.
func DefaultSchedule() RentSchedule {
	return RentSchedule{
		StorageOverhead:     DefaultStorageOverhead,
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
	}
}

// MinimumBalance returns the balance needed to hold size bytes rent exempt,
// saturating at math.MaxUint64.
func (r RentSchedule) MinimumBalance(size int) uint64 {
	if size < 0 {
		size = 0
	}
	bytes, carry := bits.Add64(r.StorageOverhead, uint64(size), 0)
	if carry != 0 {
		return math.MaxUint64
	}
	hi, perYear := bits.Mul64(bytes, r.LamportsPerByteYear)
	if hi != 0 {
		return math.MaxUint64
	}
	total := float64(perYear) * r.ExemptionThreshold
	if total >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(total)
}

// Withdrawable is max(0, balance-minimum).
func Withdrawable(balance, minimum uint64) uint64 {
	if balance <= minimum {
		return 0
	}
	return balance - minimum
}

// Fixed is an Oracle that returns the same minimum for every size. Useful for tests.
type Fixed uint64

// MinimumBalance implements Oracle.
func (f Fixed) MinimumBalance(int) uint64 { return uint64(f) }
