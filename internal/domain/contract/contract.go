package contract

import (
	"database/sql"
	"time"
)

// Type classifies the brokerage agreement a contract represents.
type Type string

const (
	TypeInstallmentRental Type = "ALQUILER"    // recurring monthly payments
	TypeFixedTerm         Type = "ANTICRETICO" // single fixed expiration date
	TypeService           Type = "SERVICIO"
	TypeSale              Type = "VENTA"
)

// Contract represents a brokerage agreement. The alert core only reads
// contracts; they are owned by the surrounding back office.
type Contract struct {
	ID            int64
	Type          Type
	StartDate     time.Time
	EndDate       sql.NullTime
	MonthlyDueDay sql.NullInt32 // optional override of the day-of-month payment is due
	TermMonths    sql.NullInt32
	ClientID      sql.NullInt64 // counterparties, resolved through the directory
	OwnerID       sql.NullInt64
	AgentID       sql.NullInt64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DueDay returns the configured day-of-month for installment payments,
// falling back to the start date's day when no override is set.
func (c *Contract) DueDay() int {
	if c.MonthlyDueDay.Valid && c.MonthlyDueDay.Int32 > 0 {
		return int(c.MonthlyDueDay.Int32)
	}
	return c.StartDate.Day()
}

// PartyIDs returns the directory IDs of the contract's counterparties
// (client, owner, assigned agent) that are actually set.
func (c *Contract) PartyIDs() []int64 {
	ids := make([]int64, 0, 3)
	for _, ref := range []sql.NullInt64{c.ClientID, c.OwnerID, c.AgentID} {
		if ref.Valid {
			ids = append(ids, ref.Int64)
		}
	}
	return ids
}

// InstallmentDueDate computes the due date of installment k (1-based) for a
// rental contract: the start date advanced by k calendar months, with the
// day-of-month clamped to the last day of the target month. The clamp is what
// makes a due day of 31 land on Feb 29 in a leap year instead of overflowing
// into March.
func (c *Contract) InstallmentDueDate(k int) time.Time {
	start := c.StartDate
	year, month := start.Year(), int(start.Month())+k
	year += (month - 1) / 12
	month = (month-1)%12 + 1

	day := c.DueDay()
	if last := lastDayOfMonth(year, time.Month(month)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// CurrentInstallment returns the 1-based index of the installment payable at
// asOf: the smallest k whose due date is on or after asOf. An installment
// stays current through its own due date, so the on-due-date reminder window
// still matches. Returns 0 when asOf precedes the contract's start date.
func (c *Contract) CurrentInstallment(asOf time.Time) int {
	start := DateOnly(c.StartDate)
	asOf = DateOnly(asOf)
	if asOf.Before(start) {
		return 0
	}
	months := (asOf.Year()-start.Year())*12 + int(asOf.Month()) - int(start.Month())
	if months < 1 {
		return 1
	}
	if !asOf.After(DateOnly(c.InstallmentDueDate(months))) {
		return months
	}
	return months + 1
}

func lastDayOfMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly reduces a timestamp to its calendar date, anchored at midnight UTC.
// DATE columns come out of the driver at midnight UTC while as-of inputs
// arrive in server-local time; anchoring both sides in one zone is what makes
// day subtraction exact.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of whole calendar days from asOf until target.
// Negative when target is in the past.
func DaysUntil(asOf, target time.Time) int {
	a := DateOnly(asOf)
	b := DateOnly(target)
	return int(b.Sub(a).Hours() / 24)
}
