package frame_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.datawiz.dev/etl/frame"
	"go.datawiz.dev/etl/stringtest"
)

// newSampleFrame builds a three-row frame covering every column kind.
func newSampleFrame(t *testing.T) *frame.Frame {
	t.Helper()

	f := frame.New()

	id := frame.NewColumn("id", frame.Int)
	id.AppendInt(1)
	id.AppendInt(2)
	id.AppendInt(3)

	name := frame.NewColumn("name", frame.String)
	name.AppendString("alpha")
	name.AppendNull()
	name.AppendString("")

	amount := frame.NewColumn("amount", frame.Float)
	amount.AppendFloat(1.5)
	amount.AppendFloat(-2)
	amount.AppendNull()

	active := frame.NewColumn("active", frame.Bool)
	active.AppendBool(true)
	active.AppendBool(false)
	active.AppendNull()

	created := frame.NewColumn("created", frame.Date)
	created.AppendTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	created.AppendNull()
	created.AppendTime(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))

	for _, c := range []*frame.Column{id, name, amount, active, created} {
		require.NoError(t, f.AddColumn(c))
	}

	return f
}

func TestAddColumnRejectsDuplicates(t *testing.T) {
	t.Parallel()

	f := frame.New()
	require.NoError(t, f.AddColumn(frame.NewColumn("id", frame.Int)))

	err := f.AddColumn(frame.NewColumn("id", frame.String))
	assert.ErrorIs(t, err, frame.ErrColumnExists)
}

func TestAddColumnRejectsLengthMismatch(t *testing.T) {
	t.Parallel()

	f := frame.New()

	a := frame.NewColumn("a", frame.Int)
	a.AppendInt(1)
	require.NoError(t, f.AddColumn(a))

	b := frame.NewColumn("b", frame.Int)
	b.AppendInt(1)
	b.AppendInt(2)

	assert.ErrorIs(t, f.AddColumn(b), frame.ErrLengthMismatch)
}

func TestProject(t *testing.T) {
	t.Parallel()

	f := newSampleFrame(t)

	got, err := f.Project([]string{"name", "id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "id"}, got.Names())
	assert.Equal(t, 3, got.NumRows())

	_, err = f.Project([]string{"absent"})
	assert.ErrorIs(t, err, frame.ErrColumnMissing)
}

func TestFilter(t *testing.T) {
	t.Parallel()

	f := newSampleFrame(t)

	got, err := f.Filter([]bool{true, false, true})
	require.NoError(t, err)
	assert.Equal(t, 2, got.NumRows())

	id, ok := got.Column("id")
	require.True(t, ok)
	assert.Equal(t, int64(1), id.IntAt(0))
	assert.Equal(t, int64(3), id.IntAt(1))

	name, ok := got.Column("name")
	require.True(t, ok)
	assert.False(t, name.IsNull(0))
	assert.Equal(t, "", name.StringAt(1))

	_, err = f.Filter([]bool{true})
	assert.ErrorIs(t, err, frame.ErrLengthMismatch)
}

func TestConcat(t *testing.T) {
	t.Parallel()

	a := newSampleFrame(t)
	b := newSampleFrame(t)

	got, err := frame.Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 6, got.NumRows())
	assert.Equal(t, a.Names(), got.Names())

	name, ok := got.Column("name")
	require.True(t, ok)
	assert.True(t, name.IsNull(4))
}

func TestConcatRejectsKindMismatch(t *testing.T) {
	t.Parallel()

	a := frame.New()
	ca := frame.NewColumn("id", frame.Int)
	ca.AppendInt(1)
	require.NoError(t, a.AddColumn(ca))

	b := frame.New()
	cb := frame.NewColumn("id", frame.String)
	cb.AppendString("1")
	require.NoError(t, b.AddColumn(cb))

	_, err := frame.Concat(a, b)
	assert.ErrorIs(t, err, frame.ErrKindMismatch)
}

func TestChunks(t *testing.T) {
	t.Parallel()

	f := newSampleFrame(t)

	chunks := f.Chunks(2)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, 2, chunks[0].Rows())
	assert.Equal(t, 1, chunks[1].Rows())
	assert.Equal(t, f.Names(), chunks[0].Columns)

	assert.Empty(t, frame.New().Chunks(2))
}

func TestWriteChunkCSV(t *testing.T) {
	t.Parallel()

	f := newSampleFrame(t)

	var buf bytes.Buffer

	err := f.WriteChunkCSV(&buf, f.Chunks(10)[0])
	require.NoError(t, err)

	want := stringtest.JoinLF(
		stringtest.JoinSOH("1", "alpha", "1.5", "1", "2024-03-01"),
		stringtest.JoinSOH("2", `\N`, "-2", "0", `\N`),
		stringtest.JoinSOH("3", "", `\N`, `\N`, "2024-03-03"),
		"",
	)
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVCustomSeparator(t *testing.T) {
	t.Parallel()

	f := frame.New()

	c := frame.NewColumn("v", frame.String)
	c.AppendString("a")
	c.AppendString("b")
	require.NoError(t, f.AddColumn(c))

	d := frame.NewColumn("w", frame.String)
	d.AppendString("x")
	d.AppendNull()
	require.NoError(t, f.AddColumn(d))

	var buf bytes.Buffer

	require.NoError(t, f.WriteCSV(&buf, '|'))
	assert.Equal(t, "a|x\nb|\\N\n", buf.String())
}

func TestParquetRoundTrip(t *testing.T) {
	t.Parallel()

	f := newSampleFrame(t)
	path := filepath.Join(t.TempDir(), "sample.parquet")

	require.NoError(t, frame.WriteParquet(path, f))

	got, err := frame.ReadParquet(path)
	require.NoError(t, err)

	require.Equal(t, f.NumRows(), got.NumRows())
	require.ElementsMatch(t, f.Names(), got.Names())

	id, ok := got.Column("id")
	require.True(t, ok)
	assert.Equal(t, frame.Int, id.Kind())
	assert.Equal(t, int64(2), id.IntAt(1))

	name, ok := got.Column("name")
	require.True(t, ok)
	assert.True(t, name.IsNull(1))
	assert.Equal(t, "", name.StringAt(2))

	// Temporal columns persist as their rendered text.
	created, ok := got.Column("created")
	require.True(t, ok)
	assert.Equal(t, frame.String, created.Kind())
	assert.True(t, created.IsNull(1))
	assert.Equal(t, "2024-03-01", created.StringAt(0))
}
