package reporting

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Output file names.
const (
	ReportFile       = "PRICING_REPORT.md"
	AnomaliesFile    = "anomalies.csv"
	BenchmarksFile   = "benchmarks.csv"
	ComparisonsFile  = "comparisons.csv"
	CoverageGapsFile = "coverage_gaps.csv"
	CoverageMapFile  = "coverage.geojson"
)

// WriteFiles renders every output of r into dir and returns the written paths in order.
func WriteFiles(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	outputs := []struct {
		name   string
		render func(io.Writer) error
	}{
		{ReportFile, func(w io.Writer) error {
			_, err := io.WriteString(w, RenderMarkdown(r))
			return err
		}},
		{AnomaliesFile, func(w io.Writer) error { return WriteAnomaliesCSV(w, r.Anomalies) }},
		{BenchmarksFile, func(w io.Writer) error { return WriteBenchmarksCSV(w, r.Benchmarks) }},
		{ComparisonsFile, func(w io.Writer) error { return WriteComparisonsCSV(w, r.Comparisons) }},
		{CoverageGapsFile, func(w io.Writer) error { return WriteCoverageGapsCSV(w, r.CoverageGaps) }},
		{CoverageMapFile, func(w io.Writer) error {
			data, err := CoverageGeoJSON(r).MarshalJSON()
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}},
	}

	paths := make([]string, 0, len(outputs))
	for _, out := range outputs {
		var buf bytes.Buffer
		if err := out.render(&buf); err != nil {
			return paths, fmt.Errorf("render %s: %w", out.name, err)
		}
		path := filepath.Join(dir, out.name)
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return paths, fmt.Errorf("write %s: %w", out.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
