/*
Package generic provides the shared vocabulary of the payout engine.

PURPOSE:
  This package contains domain-agnostic types used by the reward engine,
  the payout ledger and the stores: money amounts, identifiers, calendar
  month arithmetic and the read-only source interfaces the engine is fed
  from. Nothing in here knows about tiers, trials or tax.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: an integer amount in the smallest currency unit (yen)
  - Identifiers: type-safe coach, lesson, master, membership and payout IDs

DESIGN PRINCIPLES:
  1. Integer money: amounts never pass through float64
  2. Exact rates: multiplication by a rate goes through decimal.Decimal and
     is floored explicitly by the caller
  3. Type Safety: strong typing for IDs prevents mixing coach/lesson IDs

USAGE:
  price := generic.Money(8000)
  reward := price.MulFloor(decimal.RequireFromString("0.60")) // 4800

SEE ALSO:
  - time.go: month arithmetic
  - period.go: closed date ranges
  - source.go: read-only data interfaces
*/
package generic

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Integer amount in minor currency units
// =============================================================================

// Money is an amount in the smallest currency unit.
type Money int64

func (m Money) Add(o Money) Money      { return m + o }
func (m Money) Sub(o Money) Money      { return m - o }
func (m Money) IsZero() bool           { return m == 0 }
func (m Money) IsPositive() bool       { return m > 0 }
func (m Money) IsNegative() bool       { return m < 0 }
func (m Money) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(m)) }
func (m Money) String() string         { return strconv.FormatInt(int64(m), 10) }

// Max returns the larger of m and o.
func (m Money) Max(o Money) Money {
	if m > o {
		return m
	}
	return o
}

// MulFloor returns floor(m × rate).
func (m Money) MulFloor(rate decimal.Decimal) Money {
	return FromDecimalFloor(m.Decimal().Mul(rate))
}

// DivFloor returns floor(m / divisor). A zero divisor yields m unchanged.
func (m Money) DivFloor(divisor decimal.Decimal) Money {
	if divisor.IsZero() {
		return m
	}
	return FromDecimalFloor(m.Decimal().Div(divisor))
}

// FromDecimalFloor converts d to Money, rounding toward negative infinity.
func FromDecimalFloor(d decimal.Decimal) Money {
	return Money(d.Floor().IntPart())
}

// Sum adds up amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CoachID string
type LessonID string
type LessonMasterID string
type MembershipID string
type StudentID string
type PayoutID string
