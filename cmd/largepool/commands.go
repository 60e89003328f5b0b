package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"

	"github.com/stat-ml/ncvis/datasets"
	"github.com/stat-ml/ncvis/pool"
)

type csvOptions struct {
	lines *int
	chunk *int
	sep   *string
}

func registerCSVFlags(fs *pflag.FlagSet) csvOptions {
	return csvOptions{
		lines: fs.Int("lines", 0, "csv: number of data lines to read after the header"),
		chunk: fs.Int("chunk", 1024, "csv: lines per task"),
		sep:   fs.String("sep", `\t`, "csv: field separator"),
	}
}

func (a *app) runCoil(ctx context.Context, dir string) error {
	start := time.Now()
	ds, err := datasets.LoadCoil(ctx, dir, a.opts...)
	if ds == nil {
		return err
	}

	n, lenErr := ds.Len()
	if lenErr != nil {
		return errors.Join(err, lenErr)
	}

	bold.Fprintln(a.stdout, "COIL dataset")
	table := tablewriter.NewWriter(a.stdout)
	table.Header("Label", "Object", "Samples")

	counts := make(map[int]int)
	for _, y := range ds.Y {
		counts[y]++
	}
	labels := make([]int, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	for _, label := range labels {
		table.Append(strconv.Itoa(label), ds.Names[label], strconv.Itoa(counts[label]))
	}
	table.Render()

	fmt.Fprintf(a.stdout, "  Samples:  %d\n", n)
	fmt.Fprintf(a.stdout, "  Classes:  %d\n", ds.Classes())
	fmt.Fprintf(a.stdout, "  Shape:    %v\n", ds.Shape)
	fmt.Fprintf(a.stdout, "  Elapsed:  %s\n", time.Since(start).Round(time.Millisecond))
	if err == nil {
		green.Fprintln(a.stdout, "done")
	}
	return err
}

func (a *app) runCSV(ctx context.Context, path string) error {
	if *a.csvOpts.lines <= 0 {
		return fmt.Errorf("%w: csv needs --lines > 0", errUsage)
	}
	sep, err := parseSeparator(*a.csvOpts.sep)
	if err != nil {
		return err
	}

	start := time.Now()
	t, err := datasets.LoadDelimited(ctx, path, *a.csvOpts.lines, *a.csvOpts.chunk, sep, a.opts...)
	if t == nil {
		return err
	}

	bold.Fprintln(a.stdout, "Delimited file")
	table := tablewriter.NewWriter(a.stdout)
	table.Header("File", "Rows", "Columns", "Chunk", "Elapsed")
	table.Append(
		path,
		strconv.Itoa(len(t.Rows)),
		strconv.Itoa(t.Columns),
		strconv.Itoa(*a.csvOpts.chunk),
		time.Since(start).Round(time.Millisecond).String(),
	)
	table.Render()

	if err == nil {
		green.Fprintln(a.stdout, "done")
	}
	return err
}

// parseSeparator accepts a single character or the escapes \t and \s.
func parseSeparator(s string) (rune, error) {
	switch s {
	case `\t`:
		return '\t', nil
	case `\s`:
		return ' ', nil
	}

	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("%w: separator must be a single character, got %q", errUsage, s)
	}
	return r, nil
}

// printFailure lists failed tasks one per line, then any other cause.
func printFailure(w io.Writer, err error) {
	taskErrs := pool.TaskErrors(err)
	if len(taskErrs) == 0 {
		red.Fprintf(w, "error: %v\n", err)
		return
	}

	red.Fprintf(w, "%d task(s) failed:\n", len(taskErrs))
	for _, te := range taskErrs {
		fmt.Fprintf(w, "  - %v\n", te)
	}
	if errors.Is(err, pool.ErrStalled) {
		red.Fprintln(w, pool.ErrStalled)
	}
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
