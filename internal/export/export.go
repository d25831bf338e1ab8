// Package export renders a computed dashboard as CSV, JSON or PDF, either to
// a writer (HTTP downloads) or to files under a report directory.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"metas/internal/engine"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// AllFormats lists every supported format in output order.
var AllFormats = []Format{FormatCSV, FormatJSON, FormatPDF}

// ParseFormat accepts csv, json or pdf in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q: must be csv, json or pdf", s)
	}
}

// ParseFormats parses a comma separated format list, dropping duplicates.
func ParseFormats(s string) ([]Format, error) {
	var formats []Format
	seen := map[Format]bool{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no export format given")
	}
	return formats, nil
}

// ContentType is the MIME type served for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// DefaultName is the base file name for a dashboard export.
func DefaultName(d engine.Dashboard) string {
	return fmt.Sprintf("metas_%s_%s", d.Start, d.End)
}

// Encode writes the dashboard to w in the given format.
func Encode(w io.Writer, d engine.Dashboard, format Format) error {
	switch format {
	case FormatCSV:
		return encodeCSV(w, d)
	case FormatJSON:
		return encodeJSON(w, d)
	case FormatPDF:
		return encodePDF(w, d)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func ToCSV(d engine.Dashboard, dir, name string) (string, error) {
	return Write(d, dir, name, FormatCSV)
}

func ToJSON(d engine.Dashboard, dir, name string) (string, error) {
	return Write(d, dir, name, FormatJSON)
}

func ToPDF(d engine.Dashboard, dir, name string) (string, error) {
	return Write(d, dir, name, FormatPDF)
}

// Write renders the dashboard to <dir>/<name>.<format> and returns the
// absolute path. An empty name uses DefaultName. Existing files are replaced.
func Write(d engine.Dashboard, dir, name string, format Format) (string, error) {
	outputFilename, err := generateFilename(name, dir, d, format)
	if err != nil {
		return "", err
	}

	// Render to a temp file first so readers never see a half-written report.
	tmp, err := os.CreateTemp(filepath.Dir(outputFilename), "."+filepath.Base(outputFilename)+".*")
	if err != nil {
		return "", fmt.Errorf("error creating %s file: %w", format, err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, d, format); err != nil {
		tmp.Close()
		return "", fmt.Errorf("error encoding %s data: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("error writing %s file: %w", format, err)
	}
	if err := os.Rename(tmp.Name(), outputFilename); err != nil {
		return "", fmt.Errorf("error writing %s file: %w", format, err)
	}

	return filepath.Abs(outputFilename)
}

// WriteAll writes every requested format concurrently. Paths are returned
// in the order of formats.
func WriteAll(ctx context.Context, d engine.Dashboard, dir, name string, formats []Format) ([]string, error) {
	paths := make([]string, len(formats))
	g, ctx := errgroup.WithContext(ctx)
	for i, format := range formats {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := Write(d, dir, name, format)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func generateFilename(base, dir string, d engine.Dashboard, format Format) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get current working directory: %w", err)
		}
		dir = cwd
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory '%s': %w", dir, err)
	}
	if base == "" {
		base = DefaultName(d)
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%s", base, format)), nil
}

func encodeJSON(w io.Writer, d engine.Dashboard) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(d)
}

// summaryHeaders and the annual section layout are shared by the CSV and
// PDF renderers.
var summaryHeaders = []string{"Category", "Monthly Target", "Annual Target", "Achieved", "Remaining", "Percent Complete"}

func summaryRecord(s engine.PeriodSummary) []string {
	return []string{
		s.Category,
		strconv.FormatInt(s.MonthlyTarget, 10),
		strconv.FormatInt(s.AnnualTarget, 10),
		strconv.FormatInt(s.AchievedTotal, 10),
		strconv.FormatInt(s.Remaining, 10),
		engine.FormatPercent(s.PercentComplete, 1),
	}
}

func annualHeaders(d engine.Dashboard) []string {
	return append([]string{"Category", "Series"}, d.Months...)
}

func seriesRecords(s engine.AnnualSeries) [][]string {
	achieved := []string{s.Category, "Achieved"}
	target := []string{s.Category, "Target"}
	for m := 0; m < engine.MonthsPerYear; m++ {
		achieved = append(achieved, strconv.FormatInt(s.Achieved[m], 10))
		target = append(target, strconv.FormatInt(s.Target[m], 10))
	}
	return [][]string{achieved, target}
}

func encodeCSV(w io.Writer, d engine.Dashboard) error {
	writer := csv.NewWriter(w)

	records := [][]string{
		{fmt.Sprintf("Period %s to %s", d.Start, d.End)},
		summaryHeaders,
	}
	for _, s := range d.Summaries {
		records = append(records, summaryRecord(s))
	}
	records = append(records,
		[]string{},
		[]string{fmt.Sprintf("Annual projection %d", d.Annual.Year)},
		annualHeaders(d),
	)
	for _, s := range d.Annual.Series {
		records = append(records, seriesRecords(s)...)
	}

	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("error writing CSV record: %w", err)
	}
	return nil
}
