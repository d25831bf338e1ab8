package engine

import (
	"strconv"
	"time"

	"metas/internal/core"
)

// Dashboard is everything the presentation layer renders for a period.
type Dashboard struct {
	Period    core.Period     `json:"-"`
	Start     string          `json:"start"`
	End       string          `json:"end"`
	Summaries []PeriodSummary `json:"summaries"`
	Annual    AnnualTotals    `json:"annual"`
	Months    []string        `json:"months"`
}

// BuildDashboard combines the period summaries with the annual projection of
// the year the period starts in.
func BuildDashboard(period core.Period, grouped []core.GroupedRow, monthly []core.MonthlyRow, defaults core.CategoryDefaults) Dashboard {
	return Dashboard{
		Period:    period,
		Start:     period.Start.String(),
		End:       period.End.String(),
		Summaries: ComputePeriodSummaries(grouped),
		Annual:    ComputeAnnualTotals(monthly, defaults, period.Start.Year()),
		Months:    MonthLabels(),
	}
}

// ProjectionYear is the year whose monthly totals a dashboard for period needs.
func ProjectionYear(period core.Period) int {
	return period.Start.Year()
}

// HasSummaries reports whether any record fell inside the period.
func (d Dashboard) HasSummaries() bool {
	return len(d.Summaries) > 0
}

// MonthLabels returns the English month abbreviations Jan..Dec.
func MonthLabels() []string {
	labels := make([]string, MonthsPerYear)
	for i := range labels {
		labels[i] = time.Month(i + 1).String()[:3]
	}
	return labels
}

// FormatPercent renders p with the given number of decimals and a % suffix.
func FormatPercent(p float64, decimals int) string {
	return strconv.FormatFloat(p, 'f', decimals, 64) + "%"
}
