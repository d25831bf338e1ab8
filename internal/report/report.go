// Package report prints goal dashboards to the terminal and optionally
// writes them as export files.
package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"metas/internal/core"
	"metas/internal/engine"
	"metas/internal/export"
)

var (
	percentDone    = color.New(color.FgGreen, color.Bold).SprintFunc()
	percentHalfway = color.New(color.FgYellow, color.Bold).SprintFunc()
	percentBehind  = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Recomputer is the read side of the goal service.
type Recomputer interface {
	Recompute(ctx context.Context, period core.Period) (engine.Dashboard, error)
}

// Options select the period and the optional files of a report run.
type Options struct {
	Start      string
	End        string
	Year       int
	Formats    []export.Format
	Dir        string
	ReportName string
}

// ResolvePeriod picks the report period. Year selects a whole calendar year;
// Start and End override either bound. Without flags the current year is used.
func ResolvePeriod(opts Options, now time.Time) (core.Period, error) {
	year := now.Year()
	if opts.Year != 0 {
		year = opts.Year
	}
	period := core.YearPeriod(year)

	if opts.Start != "" {
		d, err := core.ParseDate(opts.Start)
		if err != nil {
			return core.Period{}, fmt.Errorf("--start: %w", err)
		}
		period.Start = d
	}
	if opts.End != "" {
		d, err := core.ParseDate(opts.End)
		if err != nil {
			return core.Period{}, fmt.Errorf("--end: %w", err)
		}
		period.End = d
	}
	return period, nil
}

// Run recomputes the dashboard, prints it to out and writes the requested
// export files. It returns the written paths.
func Run(ctx context.Context, goals Recomputer, opts Options, now time.Time, out io.Writer) ([]string, error) {
	period, err := ResolvePeriod(opts, now)
	if err != nil {
		return nil, err
	}

	d, err := goals.Recompute(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("recompute %s: %w", period.Key(), err)
	}

	if err := Render(out, d); err != nil {
		return nil, err
	}

	if len(opts.Formats) == 0 {
		return nil, nil
	}
	name := opts.ReportName
	if name == "" {
		name = export.DefaultName(d)
	}
	paths, err := export.WriteAll(ctx, d, opts.Dir, name, opts.Formats)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		fmt.Fprintf(out, "%s %s\n", percentDone("saved"), p)
	}
	return paths, nil
}

// Render prints the period summary table followed by the annual projection.
func Render(out io.Writer, d engine.Dashboard) error {
	fmt.Fprintln(out, pterm.FgMagenta.Sprintf("Goals from %s to %s", d.Start, d.End))
	if d.HasSummaries() {
		summary, err := pterm.DefaultTable.
			WithHasHeader().
			WithBoxed().
			WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
			WithData(SummaryTable(d)).
			Srender()
		if err != nil {
			return fmt.Errorf("render summary table: %w", err)
		}
		fmt.Fprintln(out, summary)
	} else {
		fmt.Fprintln(out, pterm.FgYellow.Sprint("No goals recorded in this period."))
	}

	fmt.Fprintln(out, pterm.FgMagenta.Sprintf("Annual projection %d", d.Annual.Year))
	annual, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(AnnualTable(d)).
		Srender()
	if err != nil {
		return fmt.Errorf("render annual table: %w", err)
	}
	fmt.Fprintln(out, annual)
	return nil
}

// SummaryTable lays out one row per summary with a coloured percentage.
func SummaryTable(d engine.Dashboard) pterm.TableData {
	data := pterm.TableData{
		{"Goal", "Monthly Target", "Annual Target", "Achieved", "Remaining", "% Complete"},
	}
	for _, s := range d.Summaries {
		data = append(data, []string{
			s.Category,
			strconv.FormatInt(s.MonthlyTarget, 10),
			strconv.FormatInt(s.AnnualTarget, 10),
			strconv.FormatInt(s.AchievedTotal, 10),
			strconv.FormatInt(s.Remaining, 10),
			colorPercent(s.PercentComplete),
		})
	}
	return data
}

// AnnualTable shows each category's cumulative achieved total against its
// target ramp as "achieved/target" per month.
func AnnualTable(d engine.Dashboard) pterm.TableData {
	header := append([]string{"Goal"}, engine.MonthLabels()...)
	data := pterm.TableData{header}
	for _, s := range d.Annual.Series {
		row := make([]string, 0, engine.MonthsPerYear+1)
		row = append(row, s.Category)
		for i := 0; i < engine.MonthsPerYear; i++ {
			row = append(row, strconv.FormatInt(s.Achieved[i], 10)+"/"+strconv.FormatInt(s.Target[i], 10))
		}
		data = append(data, row)
	}
	return data
}

func colorPercent(p float64) string {
	text := engine.FormatPercent(p, 1)
	switch {
	case p >= 100:
		return percentDone(text)
	case p >= 50:
		return percentHalfway(text)
	default:
		return percentBehind(text)
	}
}

// ParseFormats accepts the values of a repeated or comma separated
// --report-type flag. No values means no files.
func ParseFormats(values []string) ([]export.Format, error) {
	joined := strings.TrimSpace(strings.Join(values, ","))
	if joined == "" {
		return nil, nil
	}
	return export.ParseFormats(joined)
}
