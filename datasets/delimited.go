package datasets

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stat-ml/ncvis/pool"
	"github.com/stat-ml/ncvis/source"
)

// DefaultSeparator is the field delimiter of DelimitedLoader.
const DefaultSeparator = '\t'

// Table is the parsed content of one or more chunks. Rows keep the order of
// the file.
type Table struct {
	Rows    [][]string
	Columns int // widest row
}

// Append adds the rows of other after the rows of t.
func (t *Table) Append(other Table) {
	t.Rows = append(t.Rows, other.Rows...)
	t.Columns = max(t.Columns, other.Columns)
}

// Float64s converts every cell to a float. Short rows are padded with NaN
// up to Columns.
func (t *Table) Float64s() ([][]float64, error) {
	out := make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		vals := make([]float64, t.Columns)
		for j := range vals {
			if j >= len(row) {
				vals[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			vals[j] = v
		}
		out[i] = vals
	}
	return out, nil
}

// DelimitedLoader parses one chunk of a headerless delimited file.
type DelimitedLoader struct {
	sep rune
}

// NewDelimitedLoader returns a loader splitting fields on sep. A zero sep
// means DefaultSeparator.
func NewDelimitedLoader(sep rune) *DelimitedLoader {
	if sep == 0 {
		sep = DefaultSeparator
	}
	return &DelimitedLoader{sep: sep}
}

// DelimitedFactory builds one DelimitedLoader per worker.
func DelimitedFactory(sep rune) pool.WorkerFactory[source.Chunk, Table] {
	return func() (pool.Worker[source.Chunk, Table], error) {
		return NewDelimitedLoader(sep), nil
	}
}

// Process parses chunk. Empty chunks are skipped.
func (l *DelimitedLoader) Process(ctx context.Context, chunk source.Chunk) pool.Outcome[Table] {
	if chunk.Empty() {
		return pool.Skip[Table]()
	}
	if err := ctx.Err(); err != nil {
		return pool.Fail[Table](err)
	}

	r := csv.NewReader(strings.NewReader(chunk.Text))
	r.Comma = l.sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return pool.Fail[Table](fmt.Errorf("chunk %d: %w", chunk.Index, err))
	}

	t := Table{Rows: rows}
	for _, row := range rows {
		t.Columns = max(t.Columns, len(row))
	}
	return pool.Success(t)
}

// LoadDelimited parses up to lines rows of the file at path, after one header
// line, in chunks of chunkSize rows spread over a pool. Chunks are
// concatenated in file order.
func LoadDelimited(ctx context.Context, path string, lines, chunkSize int, sep rune, opts ...pool.Option) (*Table, error) {
	reader, err := source.NewChunkReader(path, lines, chunkSize)
	if err != nil {
		return nil, err
	}

	p := pool.New[source.Chunk, Table](opts...)
	report, runErr := p.Execute(ctx, reader, DelimitedFactory(sep))
	if report == nil {
		return nil, runErr
	}

	table := &Table{}
	for _, res := range report.Sorted() {
		table.Append(res.Value)
	}
	return table, runErr
}
