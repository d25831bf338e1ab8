package http

import (
	"math"

	"metas/internal/core"
	"metas/internal/engine"
)

// palette colours categories in configured order; it wraps past five.
var palette = []string{"#9333ea", "#f97316", "#eab308", "#06b6d4", "#ec4899"}

var categoryIcons = map[string]string{
	"Sites":     "fa-globe",
	"Delivery":  "fa-truck",
	"Ecommerce": "fa-shopping-cart",
	"Tráfego":   "fa-chart-bar",
	"Celina IA": "fa-robot",
}

const defaultIcon = "fa-bullseye"

type summaryView struct {
	engine.PeriodSummary
	Color   string
	Icon    string
	Percent string
	// Rounded is the donut label, Width the clamped bar width.
	Rounded string
	Width   int
}

type monthCell struct {
	Label    string
	Achieved int64
	Target   int64
	Width    int
}

type annualView struct {
	Category     string
	Color        string
	Icon         string
	AnnualTarget int64
	Total        int64
	Months       []monthCell
}

type dashboardView struct {
	Start      string
	End        string
	Year       int
	Today      string
	Summaries  []summaryView
	Annual     []annualView
	Categories core.CategoryDefaults
	Error      string
}

// colorFor returns the palette colour of a category, by its configured
// position. Unknown categories take the colour after the last known one.
func colorFor(defaults core.CategoryDefaults, category string) string {
	for i, c := range defaults {
		if c.Name == category {
			return palette[i%len(palette)]
		}
	}
	return palette[len(defaults)%len(palette)]
}

func iconFor(category string) string {
	if icon, ok := categoryIcons[category]; ok {
		return icon
	}
	return defaultIcon
}

// barWidth scales v against max to 0..100, keeping tiny non-zero values visible.
func barWidth(v, max float64) int {
	if max <= 0 || v <= 0 {
		return 0
	}
	w := int(math.Round(v / max * 100))
	if w < 2 {
		w = 2
	}
	if w > 100 {
		w = 100
	}
	return w
}

func newDashboardView(d engine.Dashboard, defaults core.CategoryDefaults, today core.Date) dashboardView {
	v := dashboardView{
		Start:      d.Start,
		End:        d.End,
		Year:       d.Annual.Year,
		Today:      today.String(),
		Summaries:  make([]summaryView, 0, len(d.Summaries)),
		Annual:     make([]annualView, 0, len(d.Annual.Series)),
		Categories: defaults,
	}

	for _, s := range d.Summaries {
		v.Summaries = append(v.Summaries, summaryView{
			PeriodSummary: s,
			Color:         colorFor(defaults, s.Category),
			Icon:          iconFor(s.Category),
			Percent:       engine.FormatPercent(s.PercentComplete, 1),
			Rounded:       engine.FormatPercent(s.PercentComplete, 0),
			Width:         barWidth(s.PercentComplete, 100),
		})
	}

	for _, series := range d.Annual.Series {
		// Bars share one scale per category so achieved and target compare.
		scale := float64(series.Target[engine.MonthsPerYear-1])
		if total := float64(series.Total()); total > scale {
			scale = total
		}

		av := annualView{
			Category:     series.Category,
			Color:        colorFor(defaults, series.Category),
			Icon:         iconFor(series.Category),
			AnnualTarget: series.AnnualTarget,
			Total:        series.Total(),
			Months:       make([]monthCell, 0, engine.MonthsPerYear),
		}
		for i, label := range d.Months {
			av.Months = append(av.Months, monthCell{
				Label:    label,
				Achieved: series.Achieved[i],
				Target:   series.Target[i],
				Width:    barWidth(float64(series.Achieved[i]), scale),
			})
		}
		v.Annual = append(v.Annual, av)
	}

	return v
}
