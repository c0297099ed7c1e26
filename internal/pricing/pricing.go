/*
SPDX-License-Identifier: Apache-2.0
*/

// Package pricing implements the descending price schedule of a Dutch
// auction. Prices are integers and times are whole Unix seconds so every
// endorser computes the same price for the same transaction timestamp.
package pricing

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidTimeRange is returned for a schedule with a zero duration or a
// floor above its start price.
var ErrInvalidTimeRange = errors.New("invalid time range")

// Schedule holds the parameters of a linear price decay.
type Schedule struct {
	StartPrice uint64 `json:"startPrice"`
	EndPrice   uint64 `json:"endPrice"`
	StartTime  int64  `json:"startTime"` // unix seconds
	Duration   uint64 `json:"duration"`  // seconds
}

// ValidateBasic performs the construction time checks of a schedule.
func (s Schedule) ValidateBasic() error {
	if s.Duration == 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidTimeRange)
	}
	if s.EndPrice > s.StartPrice {
		return fmt.Errorf("%w: end price %d above start price %d", ErrInvalidTimeRange, s.EndPrice, s.StartPrice)
	}
	return nil
}

// EndTime is the first second at which the price sits on the floor.
func (s Schedule) EndTime() int64 {
	if s.Duration > uint64(maxInt64-s.StartTime) {
		return maxInt64
	}
	return s.StartTime + int64(s.Duration)
}

const maxInt64 = int64(^uint64(0) >> 1)

// Elapsed returns how many seconds of the schedule have passed at now,
// clamped to [0, Duration].
func (s Schedule) Elapsed(now int64) uint64 {
	if now <= s.StartTime {
		return 0
	}
	elapsed := uint64(now - s.StartTime)
	if elapsed > s.Duration {
		return s.Duration
	}
	return elapsed
}

// Price returns the ask price at now:
//
//	startPrice - (startPrice-endPrice) * min(elapsed, duration) / duration
//
// The decay term is rounded down. The product is computed on 128 bits so
// large amounts cannot overflow. The schedule must be valid.
func (s Schedule) Price(now int64) uint64 {
	elapsed := s.Elapsed(now)
	if elapsed == s.Duration {
		return s.EndPrice
	}

	spread := s.StartPrice - s.EndPrice
	hi, lo := bits.Mul64(spread, elapsed)
	// hi < Duration holds because elapsed < Duration
	decay, _ := bits.Div64(hi, lo, s.Duration)
	return s.StartPrice - decay
}
