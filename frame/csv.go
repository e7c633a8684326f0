package frame

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// NullMarker is the cell written for null values. The bulk-load endpoint
// recognizes it natively, so empty strings and nulls stay distinguishable.
const NullMarker = `\N`

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Chunk is a contiguous row range [Start, End) within a frame, tagged with
// its ordinal and the frame's column order at the time of chunking.
type Chunk struct {
	Ordinal int
	Start   int
	End     int
	Columns []string
}

// Rows returns the number of rows in the chunk.
func (c Chunk) Rows() int { return c.End - c.Start }

// Chunks splits the frame into contiguous chunks of at most size rows.
// An empty frame yields no chunks.
func (f *Frame) Chunks(size int) []Chunk {
	if size < 1 {
		size = 1
	}

	total := f.NumRows()
	names := f.Names()

	var chunks []Chunk

	for start := 0; start < total; start += size {
		end := min(start+size, total)
		chunks = append(chunks, Chunk{
			Ordinal: len(chunks),
			Start:   start,
			End:     end,
			Columns: names,
		})
	}

	return chunks
}

// WriteCSV writes every row of the frame in row-delimited text form.
// See [Frame.WriteChunkCSV].
func (f *Frame) WriteCSV(w io.Writer, sep byte) error {
	return f.WriteChunkCSV(w, Chunk{Start: 0, End: f.NumRows(), Columns: f.Names()}, sep)
}

// WriteChunkCSV writes the chunk's rows without a header line, one row per
// LF-terminated line, fields joined by the separator carried by the writer
// configuration. Nulls render as [NullMarker]. Fields are written verbatim:
// the caller chooses a separator byte that cannot occur in the data.
func (f *Frame) WriteChunkCSV(w io.Writer, c Chunk, sep ...byte) error {
	s := byte(0x01)
	if len(sep) > 0 {
		s = sep[0]
	}

	cols := make([]*Column, len(c.Columns))

	for i, name := range c.Columns {
		col, ok := f.Column(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrColumnMissing, name)
		}

		cols[i] = col
	}

	bw := bufio.NewWriter(w)

	for row := c.Start; row < c.End; row++ {
		for i, col := range cols {
			if i > 0 {
				err := bw.WriteByte(s)
				if err != nil {
					return err
				}
			}

			_, err := bw.WriteString(renderCell(col, row))
			if err != nil {
				return err
			}
		}

		err := bw.WriteByte('\n')
		if err != nil {
			return err
		}
	}

	return bw.Flush()
}

// renderCell formats the value at row i for the bulk-load payload.
func renderCell(c *Column, i int) string {
	if c.IsNull(i) {
		return NullMarker
	}

	switch c.kind {
	case Int:
		return strconv.FormatInt(c.ints[i], 10)
	case Float:
		return strconv.FormatFloat(c.floats[i], 'f', -1, 64)
	case Bool:
		if c.bools[i] {
			return "1"
		}

		return "0"
	case Date:
		return c.times[i].Format(dateLayout)
	case Datetime:
		return c.times[i].Format(datetimeLayout)
	default:
		return c.strs[i]
	}
}
