package convert_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"go.datawiz.dev/etl/convert"
	"go.datawiz.dev/etl/frame"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestFileCSV(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "customers.csv",
		"CustomerNo,Name,City\n1001,Alpha GmbH,Berlin\n1002,Beta AG,\n1003,Gamma\n")
	rawDir := t.TempDir()

	out, err := convert.File(src, rawDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rawDir, "customers.parquet"), out)

	f, err := frame.ReadParquet(out)
	require.NoError(t, err)

	require.Equal(t, 3, f.NumRows())
	require.ElementsMatch(t, []string{"CustomerNo", "Name", "City"}, f.Names())

	city, ok := f.Column("City")
	require.True(t, ok)
	assert.Equal(t, frame.String, city.Kind())
	assert.Equal(t, "", city.StringAt(1))
	// Short rows null-pad on the right.
	assert.True(t, city.IsNull(2))
}

func TestFileTSV(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "export.tsv", "A\tB\n1\t2\n")

	out, err := convert.File(src, t.TempDir())
	require.NoError(t, err)

	f, err := frame.ReadParquet(out)
	require.NoError(t, err)
	assert.Equal(t, 1, f.NumRows())
	assert.ElementsMatch(t, []string{"A", "B"}, f.Names())
}

func TestFileExcel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "orders.xlsx")

	book := excelize.NewFile()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]any{"OrderNo", "Amount"}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &[]any{"A-1", 10.5}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A3", &[]any{"A-2", 7}))
	require.NoError(t, book.SaveAs(path))

	out, err := convert.File(path, t.TempDir())
	require.NoError(t, err)

	f, err := frame.ReadParquet(out)
	require.NoError(t, err)

	require.Equal(t, 2, f.NumRows())

	amount, ok := f.Column("Amount")
	require.True(t, ok)
	assert.Equal(t, frame.String, amount.Kind())
	assert.Equal(t, "10.5", amount.StringAt(0))
}

func TestFileHeaderOnlyCSV(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "customers.csv", "CustomerNo,Name\n")

	out, err := convert.File(src, t.TempDir())
	require.NoError(t, err)

	f, err := frame.ReadParquet(out)
	require.NoError(t, err)

	// An extract with no new rows is a valid empty frame, not an error.
	assert.Zero(t, f.NumRows())
	assert.ElementsMatch(t, []string{"CustomerNo", "Name"}, f.Names())
}

func TestFileHeaderOnlyExcel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "orders.xlsx")

	book := excelize.NewFile()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]any{"OrderNo", "Amount"}))
	require.NoError(t, book.SaveAs(path))

	out, err := convert.File(path, t.TempDir())
	require.NoError(t, err)

	f, err := frame.ReadParquet(out)
	require.NoError(t, err)
	assert.Zero(t, f.NumRows())
	assert.ElementsMatch(t, []string{"OrderNo", "Amount"}, f.Names())
}

func TestFileParquetPassthrough(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "typed.parquet")

	f := frame.New()
	id := frame.NewColumn("id", frame.Int)
	id.AppendInt(7)
	require.NoError(t, f.AddColumn(id))
	require.NoError(t, frame.WriteParquet(src, f))

	out, err := convert.File(src, t.TempDir())
	require.NoError(t, err)

	got, err := frame.ReadParquet(out)
	require.NoError(t, err)

	col, ok := got.Column("id")
	require.True(t, ok)
	assert.Equal(t, frame.Int, col.Kind())
	assert.Equal(t, int64(7), col.IntAt(0))
}

func TestFileErrors(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		name    string
		content string
		wantErr error
	}{
		"unsupported extension": {
			name:    "data.json",
			content: "{}",
			wantErr: convert.ErrUnsupportedFormat,
		},
		"empty file": {
			name:    "empty.csv",
			content: "",
			wantErr: convert.ErrEmpty,
		},
		"too many fields": {
			name:    "wide.csv",
			content: "A,B\n1,2,3\n",
			wantErr: convert.ErrParse,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			src := writeSource(t, tc.name, tc.content)

			_, err := convert.File(src, t.TempDir())
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
