package domain

import "time"

// AccrualPolicy maps a day of the week to the loyalty points a debit earns on that day.
// It is immutable once built.
type AccrualPolicy struct {
	table map[time.Weekday]int64
}

// DefaultPointsTable is the weekly award table used when no override is configured.
func DefaultPointsTable() map[time.Weekday]int64 {
	return map[time.Weekday]int64{
		time.Sunday:    25,
		time.Monday:    7,
		time.Tuesday:   6,
		time.Wednesday: 2,
		time.Thursday:  10,
		time.Friday:    15,
		time.Saturday:  20,
	}
}

// NewAccrualPolicy copies table; later changes to the argument have no effect.
func NewAccrualPolicy(table map[time.Weekday]int64) AccrualPolicy {
	cp := make(map[time.Weekday]int64, len(table))
	for day, pts := range table {
		cp[day] = pts
	}
	return AccrualPolicy{table: cp}
}

// DefaultAccrualPolicy returns the policy for DefaultPointsTable.
func DefaultAccrualPolicy() AccrualPolicy {
	return NewAccrualPolicy(DefaultPointsTable())
}

// PointsForDay returns the award for day, or 0 when day has no entry.
func (p AccrualPolicy) PointsForDay(day time.Weekday) int64 {
	return p.table[day]
}
