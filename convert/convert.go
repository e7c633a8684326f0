package convert

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"go.datawiz.dev/etl/frame"
)

// Sentinel errors returned by source-file conversion.
var (
	// ErrUnsupportedFormat indicates a source file extension the engine
	// does not ingest.
	ErrUnsupportedFormat = errors.New("unsupported source format")
	// ErrParse indicates a structurally broken source file.
	ErrParse = errors.New("parse source file")
	// ErrEmpty indicates a source file without even a header row.
	ErrEmpty = errors.New("empty source file")
)

// File converts one downloaded source file into a bronze parquet file under
// rawDir and returns its path. Tabular text and spreadsheets come out with
// every column as a nullable string; typing is deferred to the transform
// stage. Parquet inputs pass through with their types intact.
//
// The output lands atomically: conversion writes a temp neighbor which is
// renamed into place only on success.
func File(path, rawDir string) (string, error) {
	var (
		f   *frame.Frame
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv":
		f, err = readCSV(path)
	case ".xlsx", ".xlsm":
		f, err = readExcel(path)
	case ".parquet":
		f, err = frame.ReadParquet(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	if err != nil {
		return "", err
	}

	out := filepath.Join(rawDir, bronzeName(path))

	tmp := out + ".tmp"

	err = frame.WriteParquet(tmp, f)
	if err != nil {
		os.Remove(tmp)

		return "", err
	}

	err = os.Rename(tmp, out)
	if err != nil {
		os.Remove(tmp)

		return "", fmt.Errorf("place bronze file: %w", err)
	}

	return out, nil
}

// readCSV reads a delimited text file into an all-string frame. The first
// record is the header. Short rows are null-padded on the right; .tsv files
// split on tabs, everything else on commas. A header with no data rows is a
// valid empty extract and yields an empty frame.
func readCSV(path string) (*frame.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		reader.Comma = '\t'
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, filepath.Base(path))
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, filepath.Base(path), err)
	}

	cols := make([]*frame.Column, len(header))
	for i, name := range header {
		cols[i] = frame.NewColumn(strings.TrimSpace(name), frame.String)
	}

	rows := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, filepath.Base(path), err)
		}

		if len(record) > len(cols) {
			return nil, fmt.Errorf("%w: %s: row %d has %d fields, header has %d",
				ErrParse, filepath.Base(path), rows+2, len(record), len(cols))
		}

		for i, col := range cols {
			if i < len(record) {
				col.AppendString(record[i])
			} else {
				col.AppendNull()
			}
		}

		rows++
	}

	return assemble(cols)
}

// readExcel reads the first sheet of a workbook into an all-string frame.
// Cell values come back as their displayed strings.
func readExcel(path string) (*frame.Frame, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, filepath.Base(path), err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, filepath.Base(path))
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, filepath.Base(path), err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, filepath.Base(path))
	}

	header := rows[0]

	cols := make([]*frame.Column, len(header))
	for i, name := range header {
		cols[i] = frame.NewColumn(strings.TrimSpace(name), frame.String)
	}

	for _, row := range rows[1:] {
		for i, col := range cols {
			if i < len(row) {
				col.AppendString(row[i])
			} else {
				col.AppendNull()
			}
		}
	}

	return assemble(cols)
}

func assemble(cols []*frame.Column) (*frame.Frame, error) {
	f := frame.New()

	for _, col := range cols {
		err := f.AddColumn(col)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
	}

	return f, nil
}

// bronzeName swaps the source extension for .parquet.
func bronzeName(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base)) + ".parquet"
}
