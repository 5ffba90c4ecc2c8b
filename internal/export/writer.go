package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Writer persists export tables as one CSV file per marketplace under
// a single output directory.
type Writer struct {
	outDir string
}

// NewWriter creates a Writer targeting outDir. Call Reset before the
// first write of a run.
func NewWriter(outDir string) *Writer {
	return &Writer{outDir: outDir}
}

// Reset replaces the output directory wholesale: stale contents from a
// previous run are removed before anything new is written.
func (w *Writer) Reset() error {
	if err := os.RemoveAll(w.outDir); err != nil {
		return fmt.Errorf("export: clear output dir: %w", err)
	}
	if err := os.MkdirAll(w.outDir, 0755); err != nil {
		return fmt.Errorf("export: create output dir: %w", err)
	}
	return nil
}

// WriteTimeseries writes <marketplace>_timeseries.csv for every
// marketplace in the series.
func (w *Writer) WriteTimeseries(series map[string][]TimeseriesRow) error {
	for _, marketplace := range sortedKeys(series) {
		rows := make([][]string, 0, len(series[marketplace]))
		for _, r := range series[marketplace] {
			rows = append(rows, []string{r.Date, r.MedianUnitPriceUSD.String()})
		}
		name := fmt.Sprintf("%s_timeseries.csv", marketplace)
		if err := w.writeCSV(name, []string{"Date", "Median_Unit_Price_$"}, rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteLatest writes <marketplace>_latest.csv for every marketplace.
func (w *Writer) WriteLatest(latest map[string][]LatestRow) error {
	for _, marketplace := range sortedKeys(latest) {
		rows := make([][]string, 0, len(latest[marketplace]))
		for _, r := range latest[marketplace] {
			rows = append(rows, []string{r.URL, r.UnitPriceUSD.String()})
		}
		name := fmt.Sprintf("%s_latest.csv", marketplace)
		if err := w.writeCSV(name, []string{"Url", "Unit_Price_$"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeCSV(name string, header []string, rows [][]string) error {
	path := filepath.Join(w.outDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %q: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("export: write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("export: flush %q: %w", path, err)
	}
	return f.Close()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
