package frame

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

const writeBatchSize = 4096

// WriteParquet writes the frame to path as a flat parquet file. All columns
// are written as optional leaves; [Date] and [Datetime] columns are stored
// as their rendered string forms so re-reading a file is lossless at the
// text level.
func WriteParquet(path string, f *Frame) error {
	group := parquet.Group{}
	for _, c := range f.cols {
		group[c.name] = columnNode(c.kind)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}

	w := parquet.NewGenericWriter[map[string]any](file, parquet.NewSchema("frame", group))

	rows := make([]map[string]any, 0, writeBatchSize)
	total := f.NumRows()

	for i := range total {
		row := make(map[string]any, len(f.cols))
		for _, c := range f.cols {
			row[c.name] = cellValue(c, i)
		}

		rows = append(rows, row)

		if len(rows) == writeBatchSize {
			_, err = w.Write(rows)
			if err != nil {
				closeQuietly(file)
				return fmt.Errorf("write parquet rows: %w", err)
			}

			rows = rows[:0]
		}
	}

	if len(rows) > 0 {
		_, err = w.Write(rows)
		if err != nil {
			closeQuietly(file)
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}

	err = w.Close()
	if err != nil {
		closeQuietly(file)
		return fmt.Errorf("close parquet writer: %w", err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}

	return nil
}

// ReadParquet reads a flat parquet file into a frame. Integer and float
// physical types map onto [Int] and [Float]; everything else comes back as
// [String]. Column order follows the file's schema order.
func ReadParquet(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer closeQuietly(file)

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	schema := pf.Schema()
	fields := schema.Fields()

	out := New()
	cols := make([]*Column, len(fields))

	for i, field := range fields {
		cols[i] = NewColumn(field.Name(), leafKind(field))
	}

	buf := make([]parquet.Row, 256)

	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()

		for {
			n, readErr := rows.ReadRows(buf)

			for _, row := range buf[:n] {
				for _, v := range row {
					appendParquetValue(cols[v.Column()], v)
				}
			}

			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}

				_ = rows.Close()

				return nil, fmt.Errorf("read parquet rows: %w", readErr)
			}

			if n == 0 {
				break
			}
		}

		err = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("close parquet rows: %w", err)
		}
	}

	for _, c := range cols {
		err = out.AddColumn(c)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// columnNode maps a frame kind onto an optional parquet leaf node.
func columnNode(k Kind) parquet.Node {
	switch k {
	case Int:
		return parquet.Optional(parquet.Int(64))
	case Float:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case Bool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	default:
		return parquet.Optional(parquet.String())
	}
}

// leafKind maps a parquet leaf field back onto a frame kind.
func leafKind(field parquet.Field) Kind {
	switch field.Type().Kind() {
	case parquet.Int32, parquet.Int64:
		return Int
	case parquet.Float, parquet.Double:
		return Float
	case parquet.Boolean:
		return Bool
	default:
		return String
	}
}

// cellValue returns the parquet map-row value for row i, nil for null.
func cellValue(c *Column, i int) any {
	if c.IsNull(i) {
		return nil
	}

	switch c.kind {
	case Int:
		return c.ints[i]
	case Float:
		return c.floats[i]
	case Bool:
		return c.bools[i]
	case Date:
		return c.times[i].Format(dateLayout)
	case Datetime:
		return c.times[i].Format(datetimeLayout)
	default:
		return c.strs[i]
	}
}

// appendParquetValue appends a parquet value onto the matching column.
func appendParquetValue(c *Column, v parquet.Value) {
	if v.IsNull() {
		c.AppendNull()
		return
	}

	switch c.kind {
	case Int:
		c.AppendInt(v.Int64())
	case Float:
		c.AppendFloat(v.Double())
	case Bool:
		c.AppendBool(v.Boolean())
	default:
		c.AppendString(v.String())
	}
}

func closeQuietly(f *os.File) {
	_ = f.Close()
}
