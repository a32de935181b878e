package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a previously loaded tabular recording. Every row holds one frame.
type Table [][]string

// Layout describes where the frames are located in a recorded table.
type Layout struct {
	Header      bool // the first row contains column names
	IndexColumn bool // the first column contains a row label
}

// strip removes the header row and the index column from the given rows.
func (l Layout) strip(rows [][]string) [][]string {
	if l.Header && len(rows) > 0 {
		rows = rows[1:]
	}
	if l.IndexColumn {
		for i, row := range rows {
			if len(row) > 0 {
				rows[i] = row[1:]
			}
		}
	}
	return rows
}

// CSVOptions describe the layout of a recorded CSV file.
type CSVOptions struct {
	Layout
	Comma rune
}

// LoadCSVFile reads the recording in the given file.
func LoadCSVFile(filename string, options CSVOptions) (Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open recording: %w", err)
	}
	defer f.Close()

	return LoadCSV(f, options)
}

// LoadCSV reads a recording from the given reader.
func LoadCSV(r io.Reader, options CSVOptions) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if options.Comma != 0 {
		reader.Comma = options.Comma
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cannot read recording: %w", err)
	}

	return Table(options.strip(rows)), nil
}

// LoadXLSXFile reads the recording in the given sheet of an Excel workbook. An empty sheet name selects
// the first sheet. The cells are read unformatted.
func LoadXLSXFile(filename string, sheet string, layout Layout) (Table, error) {
	f, err := excelize.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open recording: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("cannot read recording: no sheets in workbook %s", filename)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("cannot read sheet %q: %w", sheet, err)
	}

	return Table(layout.strip(rows)), nil
}

// IsWorkbook indicates if the given filename refers to an Excel workbook.
func IsWorkbook(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return true
	default:
		return false
	}
}

// TableSource provides the rows of a table as frames, in order.
type TableSource struct {
	table  Table
	size   int
	cursor int
}

// NewTableSource returns a source that provides the rows of the given table.
// Each row must contain exactly size numeric cells.
func NewTableSource(table Table, size int) *TableSource {
	return &TableSource{
		table: table,
		size:  size,
	}
}

// Next returns the frame in the next row. A row that cannot be parsed results in ErrMalformedFrame,
// the following call continues with the row after it.
func (s *TableSource) Next() (RawFrame, error) {
	if s.cursor >= len(s.table) {
		return RawFrame{}, ErrEndOfStream
	}

	row := s.table[s.cursor]
	s.cursor++

	if len(row) != s.size {
		return RawFrame{}, fmt.Errorf("%w: row %d has %d cells, expected %d", ErrMalformedFrame, s.cursor, len(row), s.size)
	}

	samples := make([]float64, s.size)
	for i, cell := range row {
		value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return RawFrame{}, fmt.Errorf("%w: row %d, cell %d: %v", ErrMalformedFrame, s.cursor, i+1, err)
		}
		samples[i] = value
	}

	footer, err := DecodeFooter(samples)
	if err != nil {
		return RawFrame{}, fmt.Errorf("row %d: %w", s.cursor, err)
	}
	return RawFrame{Samples: samples, Footer: footer}, nil
}

// Remaining returns the number of rows that were not yet consumed.
func (s *TableSource) Remaining() int {
	return max(0, len(s.table)-s.cursor)
}
