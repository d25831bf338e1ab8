// Package engine turns record store query results into period summaries and
// annual cumulative projections.
//
// Every function here is pure: inputs are never mutated and calling a function
// twice with the same input yields the same output.
package engine

import (
	"metas/internal/core"
)

// MonthsPerYear is the length of every annual series.
const MonthsPerYear = 12

// PeriodSummary is the progress of one (category, monthly target) group
// within a period.
type PeriodSummary struct {
	Category        string  `json:"category"`
	MonthlyTarget   int64   `json:"monthly_target"`
	AnnualTarget    int64   `json:"annual_target"`
	AchievedTotal   int64   `json:"achieved_total"`
	Remaining       int64   `json:"remaining"`
	PercentComplete float64 `json:"percent_complete"`
}

// AnnualSeries is the cumulative achieved curve of a category for one year
// alongside the linear target ramp derived from its default target.
type AnnualSeries struct {
	Category      string               `json:"category"`
	Year          int                  `json:"year"`
	DefaultTarget int64                `json:"default_target"`
	AnnualTarget  int64                `json:"annual_target"`
	Achieved      [MonthsPerYear]int64 `json:"achieved"`
	Target        [MonthsPerYear]int64 `json:"target"`
}

// ComputePeriodSummaries derives one summary per grouped row, preserving row
// order. A category stored with several targets therefore appears several
// times. No rounding is applied.
func ComputePeriodSummaries(rows []core.GroupedRow) []PeriodSummary {
	out := make([]PeriodSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, summarize(row))
	}
	return out
}

func summarize(row core.GroupedRow) PeriodSummary {
	remaining := row.MonthlyTarget - row.AchievedSum
	if remaining < 0 {
		remaining = 0
	}

	var percent float64
	if row.MonthlyTarget > 0 {
		percent = float64(row.AchievedSum) / float64(row.MonthlyTarget) * 100
	}

	return PeriodSummary{
		Category:        row.Category,
		MonthlyTarget:   row.MonthlyTarget,
		AnnualTarget:    row.MonthlyTarget * MonthsPerYear,
		AchievedTotal:   row.AchievedSum,
		Remaining:       remaining,
		PercentComplete: percent,
	}
}

// ComputeAnnualSeries accumulates the monthly achieved sums of category over
// Jan..Dec. Months without rows contribute 0, so the achieved curve never
// decreases. The target ramp is defaultTarget*i for month i (1-based), with no
// calendar-day weighting and no regard for per-record targets.
func ComputeAnnualSeries(rows []core.MonthlyRow, category string, defaultTarget int64, year int) AnnualSeries {
	var perMonth [MonthsPerYear]int64
	for _, row := range rows {
		if row.Category != category || row.Month < 1 || row.Month > MonthsPerYear {
			continue
		}
		// Guard only: stored achieved values are never negative, but a
		// negative sum would make the curve decrease.
		if row.AchievedSum > 0 {
			perMonth[row.Month-1] += row.AchievedSum
		}
	}

	series := AnnualSeries{
		Category:      category,
		Year:          year,
		DefaultTarget: defaultTarget,
		AnnualTarget:  defaultTarget * MonthsPerYear,
	}

	var acc int64
	for i := 0; i < MonthsPerYear; i++ {
		acc += perMonth[i]
		series.Achieved[i] = acc
		series.Target[i] = defaultTarget * int64(i+1)
	}
	return series
}

// Total returns the achieved total for the whole year.
func (s AnnualSeries) Total() int64 {
	return s.Achieved[MonthsPerYear-1]
}

// AnnualTotals holds one series per configured category, in configured order.
type AnnualTotals struct {
	Year   int            `json:"year"`
	Series []AnnualSeries `json:"series"`
}

// ComputeAnnualTotals applies ComputeAnnualSeries to every category of
// defaults in their configured order. Categories present in rows but absent
// from defaults are not projected.
func ComputeAnnualTotals(rows []core.MonthlyRow, defaults core.CategoryDefaults, year int) AnnualTotals {
	totals := AnnualTotals{
		Year:   year,
		Series: make([]AnnualSeries, 0, len(defaults)),
	}
	for _, cat := range defaults {
		totals.Series = append(totals.Series, ComputeAnnualSeries(rows, cat.Name, cat.DefaultTarget, year))
	}
	return totals
}

// ByCategory returns the series of category.
func (t AnnualTotals) ByCategory(category string) (AnnualSeries, bool) {
	for _, s := range t.Series {
		if s.Category == category {
			return s, true
		}
	}
	return AnnualSeries{}, false
}

// Map indexes the series by category name.
func (t AnnualTotals) Map() map[string]AnnualSeries {
	m := make(map[string]AnnualSeries, len(t.Series))
	for _, s := range t.Series {
		m[s.Category] = s
	}
	return m
}
