package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/soltixdb/directcv/internal/series"
)

// readCSV loads a series: the first record is the header, each following
// record is one time step in chronological order
func readCSV(path string) (*series.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	r := csv.NewReader(file)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: need a header and at least one row", path)
	}
	f, err := series.FromRecords(records[0], records[1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func writeCSV(path string, f *series.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	if err := w.Write(f.Names()); err != nil {
		return err
	}
	for i := 0; i < f.Len(); i++ {
		if err := w.Write(formatRow(f, i)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printFrame(out io.Writer, f *series.Frame) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	names := f.Names()
	for j, n := range names {
		if j > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, n)
	}
	fmt.Fprintln(tw)
	for i := 0; i < f.Len(); i++ {
		for j, cell := range formatRow(f, i) {
			if j > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func formatRow(f *series.Frame, i int) []string {
	row := make([]string, f.Width())
	for j := range row {
		c := f.ColumnAt(j)
		if c.Kind == series.Categorical {
			row[j] = c.Cat[i]
			continue
		}
		v := c.Num[i]
		if math.IsNaN(v) {
			row[j] = ""
			continue
		}
		row[j] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return row
}
