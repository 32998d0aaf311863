// Package sheet reads tabular sources (spreadsheet workbooks and CSV files)
// into memory as a header plus string rows.
//
// Only the first worksheet of a workbook is read. The first non-blank row is
// the header; fully blank rows are dropped. Data cells are returned exactly as
// the source formats them, with no trimming. A row whose cells are all
// whitespace counts as blank.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat indicates a file extension with no reader.
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrNoHeader indicates a source without any non-blank row.
	ErrNoHeader = errors.New("no header row")

	// ErrRaggedRow indicates a row with non-blank cells past the header width.
	ErrRaggedRow = errors.New("row wider than header")
)

// Table is one tabular source materialized for the duration of a run.
type Table struct {
	Name   string     // Base file name, used in logs and errors
	Header []string   // Header cells, whitespace-trimmed
	Rows   [][]string // Data rows, each exactly len(Header) cells
	Bytes  int64      // Source size in bytes
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Read loads the source at path, choosing a reader by file extension.
func Read(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readWorkbook(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// readWorkbook streams the first worksheet of an Excel workbook.
func readWorkbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheets[0], filepath.Base(path), err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row %d of %s: %w", len(records)+1, filepath.Base(path), err)
		}
		records = append(records, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheets[0], filepath.Base(path), err)
	}

	t, err := build(filepath.Base(path), records)
	if err != nil {
		return nil, err
	}
	if fi, err := os.Stat(path); err == nil {
		t.Bytes = fi.Size()
	}
	return t, nil
}

// readCSV parses a CSV file through the BOM and UTF-8 cleanup wrappers.
func readCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	input := wrapCSVInput(file)
	r := csv.NewReader(input)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	t, err := build(filepath.Base(path), records)
	if err != nil {
		return nil, err
	}
	t.Bytes = input.n
	return t, nil
}

// build locates the header and normalizes every data row to the header width.
func build(name string, records [][]string) (*Table, error) {
	headerAt := -1
	for i, rec := range records {
		if !isBlankRow(rec) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoHeader)
	}

	header := trimTrailingBlanks(records[headerAt])
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Name: name, Header: header}
	width := len(header)

	for i, rec := range records[headerAt+1:] {
		if isBlankRow(rec) {
			continue
		}
		if len(rec) > width {
			if !isBlankRow(rec[width:]) {
				return nil, fmt.Errorf("%s line %d: %w (%d cells, header has %d)",
					name, headerAt+i+2, ErrRaggedRow, len(trimTrailingBlanks(rec)), width)
			}
			rec = rec[:width]
		}
		row := make([]string, width)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trimTrailingBlanks(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	out := make([]string, end)
	copy(out, row[:end])
	return out
}
