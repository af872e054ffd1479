// Package csvfile imports weight measurements from a local CSV export
// (scale vendor apps and spreadsheet exports both produce this shape).
// Header-driven: columns are matched by name, unknown columns are ignored
// and rows without a parseable date and positive weight are dropped.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vitalhub/vitalsync/internal/model"
)

const SourceName = "csvfile"

// Adapter implements provider.Adapter over a CSV file path.
type Adapter struct {
	path string
}

// New builds a CSV import adapter for the given file.
func New(path string) *Adapter { return &Adapter{path: path} }

func (a *Adapter) Name() string { return SourceName }

// Fetch reads the whole file and returns the rows that fall inside the
// window as weight records keyed by exact timestamp.
func (a *Adapter) Fetch(ctx context.Context, window model.TimeRange) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &model.FetchError{Source: SourceName, Transient: true, Err: err}
	}
	f, err := os.Open(a.path)
	if err != nil {
		return nil, &model.FetchError{Source: SourceName, Err: err}
	}
	defer f.Close()
	return read(f, window)
}

func read(r io.Reader, window model.TimeRange) ([]model.Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, &model.FetchError{Source: SourceName, Err: err}
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	var out []model.Record
	for {
		row, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, &model.FetchError{Source: SourceName, Partial: true, Err: err}
		}

		ts := parseDate(field(row, col, "Date"))
		weight := parseFloat(field(row, col, "Weight"))
		if ts.IsZero() || weight <= 0 {
			continue
		}
		if ts.Before(window.From) || ts.After(window.To) {
			continue
		}

		rec := model.Record{
			Key:     ts.Format(time.RFC3339),
			Kind:    model.KindWeight,
			Time:    ts,
			Metrics: map[string]float64{"weight": weight},
		}
		for csvName, metric := range map[string]string{
			"BMI":        "bmi",
			"BodyFat":    "bodyFat",
			"BodyWater":  "bodyWater",
			"BoneMass":   "boneMass",
			"MuscleMass": "muscleMass",
		} {
			if v := parseFloat(field(row, col, csvName)); v != 0 {
				rec.Metrics[metric] = v
			}
		}
		if src := field(row, col, "Source"); src != "" {
			rec.Attrs = map[string]string{"device": src}
		}
		out = append(out, rec)
	}
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
