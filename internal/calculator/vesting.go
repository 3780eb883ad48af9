package calculator

import (
	"fmt"
	"math/bits"
)

// Schedule is the minimal vesting information for one payment.
// Before From, Base units are already vested; the remaining Value-Base
// vests linearly from From until End.
type Schedule struct {
	Value int64
	Base  int64
	From  int64
	End   int64
}

// Validate checks the schedule is well formed.
func (s Schedule) Validate() error {
	if s.Value < 0 || s.Base < 0 {
		return fmt.Errorf("negative amount in schedule: value=%d base=%d", s.Value, s.Base)
	}
	if s.Base > s.Value {
		return fmt.Errorf("vested base %d exceeds value %d", s.Base, s.Value)
	}
	if s.End <= s.From {
		return fmt.Errorf("empty vesting window [%d, %d)", s.From, s.End)
	}
	return nil
}

// Vested returns the amount vested at unix second now.
//
// For a schedule with Base 0 and From equal to the start time this is
// value * min(now-start, duration) / duration, rounded down. The product is
// computed in 128 bits so no int64 value can overflow it.
func Vested(s Schedule, now int64) int64 {
	if now <= s.From {
		return s.Base
	}
	if now >= s.End {
		return s.Value
	}

	window := uint64(s.End - s.From)
	elapsed := uint64(now - s.From)
	unvested := uint64(s.Value - s.Base)

	// elapsed < window, so the quotient is < unvested and the high word is < window.
	hi, lo := bits.Mul64(unvested, elapsed)
	q, _ := bits.Div64(hi, lo, window)

	return s.Base + int64(q)
}

// Linear is a shorthand for an unforked payment that started at start and
// vests value over duration seconds.
func Linear(value, start, duration int64) Schedule {
	return Schedule{Value: value, From: start, End: start + duration}
}
