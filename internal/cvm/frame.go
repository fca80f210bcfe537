package cvm

import (
	"context"
	"io"
	"slices"

	"github.com/sells-group/fundsync/internal/fetcher"
	"github.com/sells-group/fundsync/internal/transform"
)

// ChunkSize is the number of rows buffered before the identifier filter runs.
const ChunkSize = 200_000

// idColumns are the identifier columns of the CVM files, in lookup order.
var idColumns = []string{"CNPJ_FUNDO", "CNPJ_FUNDO_CLASSE"}

// Frame is a raw delimited table: a header and string rows of the same width.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of column name, or -1.
func (f *Frame) Index(name string) int {
	return slices.Index(f.Columns, name)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool { return len(f.Rows) == 0 }

// Append concatenates o into f, widening f to the union of both column sets.
func (f *Frame) Append(o Frame) {
	if f.Columns == nil {
		f.Columns = slices.Clone(o.Columns)
	}
	pos := make([]int, len(o.Columns))
	for i, c := range o.Columns {
		j := f.Index(c)
		if j < 0 {
			f.Columns = append(f.Columns, c)
			for k := range f.Rows {
				f.Rows[k] = append(f.Rows[k], "")
			}
			j = len(f.Columns) - 1
		}
		pos[i] = j
	}
	for _, row := range o.Rows {
		out := make([]string, len(f.Columns))
		for i, v := range row {
			if i < len(pos) {
				out[pos[i]] = v
			}
		}
		f.Rows = append(f.Rows, out)
	}
}

// Rename maps column names through mapping and then drops duplicate columns,
// keeping the first occurrence.
func (f *Frame) Rename(mapping map[string]string) Frame {
	var cols []string
	var keep []int
	seen := make(map[string]struct{}, len(f.Columns))
	for i, c := range f.Columns {
		if to, ok := mapping[c]; ok {
			c = to
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cols = append(cols, c)
		keep = append(keep, i)
	}

	out := Frame{Columns: cols, Rows: make([][]string, 0, len(f.Rows))}
	for _, row := range f.Rows {
		r := make([]string, len(keep))
		for j, i := range keep {
			r[j] = row[i]
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// Getter returns a function reading the first non-empty value among the
// candidate columns present in the frame. It returns "" when none exists.
func (f *Frame) Getter(candidates ...string) func(row []string) string {
	var idx []int
	for _, c := range candidates {
		if i := f.Index(c); i >= 0 {
			idx = append(idx, i)
		}
	}
	return func(row []string) string {
		for _, i := range idx {
			if i < len(row) && row[i] != "" {
				return row[i]
			}
		}
		return ""
	}
}

// Has reports whether any of the columns is present.
func (f *Frame) Has(columns ...string) bool {
	for _, c := range columns {
		if f.Index(c) >= 0 {
			return true
		}
	}
	return false
}

// ReadFrame streams a CVM CSV file into a Frame. With a non-empty filter,
// rows are buffered in chunks of ChunkSize and only rows whose normalized
// identifier is in the filter are kept. The header is always kept, so an
// all-filtered-out file still yields the expected columns.
func ReadFrame(ctx context.Context, r io.Reader, filter map[string]struct{}) (Frame, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CVMCSVOptions())

	var frame Frame
	idCol := -1
	chunk := make([][]string, 0, min(ChunkSize, 1024))

	flush := func() {
		for _, row := range chunk {
			if len(filter) > 0 {
				if idCol < 0 {
					continue
				}
				if _, ok := filter[transform.NormalizeCNPJ(row[idCol])]; !ok {
					continue
				}
			}
			frame.Rows = append(frame.Rows, row)
		}
		chunk = chunk[:0]
	}

	for row := range rowCh {
		if frame.Columns == nil {
			frame.Columns = row
			for _, c := range idColumns {
				if i := frame.Index(c); i >= 0 {
					idCol = i
					break
				}
			}
			continue
		}
		if len(row) != len(frame.Columns) {
			fixed := make([]string, len(frame.Columns))
			copy(fixed, row)
			row = fixed
		}
		chunk = append(chunk, row)
		if len(chunk) >= ChunkSize {
			flush()
		}
	}
	flush()

	for err := range errCh {
		if err != nil {
			return frame, err
		}
	}
	return frame, nil
}
