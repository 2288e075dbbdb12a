// Package budget implements the Budget Ledger (spec.md §4.4): per-agent
// UTC-daily and per-tick spend counters with reservation semantics, pure
// admissibility checks, and saturating spend recording.
//
// Grounded on original_source/crates/nostr/core/src/nip_sa/budget.rs.
// Unlike that source, the UTC date is computed with the standard time
// package rather than the 30-day-month approximation the Rust file uses
// (spec.md §9 Open Questions flags that approximation as a known defect
// a faithful implementation should not repeat).
package budget

import (
	"fmt"
	"time"
)

// Limits bounds spend (spec.md §3 BudgetTracker, all amounts in sats).
type Limits struct {
	DailyLimitSats   uint64
	PerTickLimitSats uint64
	ReservedSats     uint64
}

// DefaultLimits mirrors the teacher source's documented defaults.
func DefaultLimits() Limits {
	return Limits{
		DailyLimitSats:   10_000,
		PerTickLimitSats: 1_000,
		ReservedSats:     5_000,
	}
}

// InsufficientBalance is returned when amount exceeds current_balance.
type InsufficientBalance struct{ Needed, Available uint64 }

func (e InsufficientBalance) Error() string {
	return fmt.Sprintf("budget: insufficient balance: needed %d, available %d", e.Needed, e.Available)
}

// ReservedBalanceViolated is returned when spending would dip into the
// reserved balance.
type ReservedBalanceViolated struct{ Balance, Reserved uint64 }

func (e ReservedBalanceViolated) Error() string {
	return fmt.Sprintf("budget: reserved balance violated: balance %d, reserved %d", e.Balance, e.Reserved)
}

// DailyLimitExceeded is returned when a spend would exceed the daily cap.
type DailyLimitExceeded struct{ Spent, Limit uint64 }

func (e DailyLimitExceeded) Error() string {
	return fmt.Sprintf("budget: daily limit exceeded: spent %d, limit %d", e.Spent, e.Limit)
}

// PerTickLimitExceeded is returned when a spend would exceed the
// per-tick cap.
type PerTickLimitExceeded struct{ Spent, Limit uint64 }

func (e PerTickLimitExceeded) Error() string {
	return fmt.Sprintf("budget: per-tick limit exceeded: spent %d, limit %d", e.Spent, e.Limit)
}

// Tracker is a single agent's budget ledger.
type Tracker struct {
	Limits Limits

	currentDate    string // UTC YYYY-MM-DD
	dailySpent     uint64
	tickSpent      uint64
	violationsToday uint64

	now func() time.Time // overridable for tests
}

// NewTracker constructs a Tracker with the given limits, anchored to the
// current UTC date.
func NewTracker(limits Limits) *Tracker {
	t := &Tracker{Limits: limits, now: time.Now}
	t.currentDate = currentUTCDate(t.now())
	return t
}

func currentUTCDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// checkAndResetDaily resets daily_spent and violations_today when the
// UTC date has rolled over since the last check.
func (t *Tracker) checkAndResetDaily() {
	date := currentUTCDate(t.now())
	if date != t.currentDate {
		t.currentDate = date
		t.dailySpent = 0
		t.violationsToday = 0
	}
}

// CheckSpend is an admissibility check: apart from the UTC-date rollover
// reset of the daily counters (checkAndResetDaily), it mutates nothing. A spend
// is admissible iff all four conditions in spec.md §4.4 hold, checked in
// this exact order.
func (t *Tracker) CheckSpend(amount, balance uint64) error {
	t.checkAndResetDaily()

	if amount > balance {
		return InsufficientBalance{Needed: amount, Available: balance}
	}
	if amount > saturatingSub(balance, t.Limits.ReservedSats) {
		return ReservedBalanceViolated{Balance: balance, Reserved: t.Limits.ReservedSats}
	}
	if saturatingAdd(t.dailySpent, amount) > t.Limits.DailyLimitSats {
		return DailyLimitExceeded{Spent: t.dailySpent + amount, Limit: t.Limits.DailyLimitSats}
	}
	if saturatingAdd(t.tickSpent, amount) > t.Limits.PerTickLimitSats {
		return PerTickLimitExceeded{Spent: t.tickSpent + amount, Limit: t.Limits.PerTickLimitSats}
	}
	return nil
}

// RecordSpend saturating-adds amount to both the daily and per-tick
// counters. Callers are expected to have already validated the spend
// with CheckSpend under the same critical section (spec.md §5).
func (t *Tracker) RecordSpend(amount uint64) {
	t.checkAndResetDaily()
	t.dailySpent = saturatingAdd(t.dailySpent, amount)
	t.tickSpent = saturatingAdd(t.tickSpent, amount)
}

// ResetTick zeros the per-tick counter only; daily counters persist.
func (t *Tracker) ResetTick() {
	t.tickSpent = 0
}

// Restore reinitializes the tracker's counters from a persisted
// checkpoint, honoring the UTC-date rollover rule: a checkpoint saved on
// a prior UTC date contributes nothing to today's counters.
func (t *Tracker) Restore(checkpointDate string, dailySpent, tickSpent, violations uint64) {
	if checkpointDate != t.currentDate {
		return
	}
	t.dailySpent = dailySpent
	t.tickSpent = tickSpent
	t.violationsToday = violations
}

// RecordViolation saturating-increments the violation counter for today.
func (t *Tracker) RecordViolation() {
	t.checkAndResetDaily()
	t.violationsToday = saturatingAdd(t.violationsToday, 1)
}

// ViolationsToday returns the violation count observed since the last
// UTC date rollover.
func (t *Tracker) ViolationsToday() uint64 {
	t.checkAndResetDaily()
	return t.violationsToday
}

// RemainingDailyBudget returns daily_limit - daily_spent, saturating at 0.
func (t *Tracker) RemainingDailyBudget() uint64 {
	t.checkAndResetDaily()
	return saturatingSub(t.Limits.DailyLimitSats, t.dailySpent)
}

// RemainingTickBudget returns per_tick_limit - tick_spent, saturating at 0.
func (t *Tracker) RemainingTickBudget() uint64 {
	return saturatingSub(t.Limits.PerTickLimitSats, t.tickSpent)
}

// AvailableToSpend returns min(balance-reserved, daily_remaining,
// tick_remaining).
func (t *Tracker) AvailableToSpend(balance uint64) uint64 {
	available := saturatingSub(balance, t.Limits.ReservedSats)
	if r := t.RemainingDailyBudget(); r < available {
		available = r
	}
	if r := t.RemainingTickBudget(); r < available {
		available = r
	}
	return available
}

// DailySpent returns today's spend total, after accounting for any date
// rollover.
func (t *Tracker) DailySpent() uint64 {
	t.checkAndResetDaily()
	return t.dailySpent
}

// TickSpent returns this tick's spend total.
func (t *Tracker) TickSpent() uint64 {
	return t.tickSpent
}

// CurrentDate returns the UTC date (YYYY-MM-DD) the tracker is anchored to.
func (t *Tracker) CurrentDate() string {
	t.checkAndResetDaily()
	return t.currentDate
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a { // wrapped
		return ^uint64(0)
	}
	return sum
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
