package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"saistats/internal/faults"
)

// Workbook is an in-memory spreadsheet acting as the column value
// provider for Build. Cells stay raw strings until coercion.
type Workbook struct {
	headers []string
	rows    [][]string
	sheets  []string
}

// OpenWorkbook parses an uploaded spreadsheet, dispatching on the file
// extension. CSV files expose a single synthetic sheet name.
func OpenWorkbook(r io.Reader, filename string) (*Workbook, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".csv"):
		return ReadCSV(r)
	case strings.HasSuffix(name, ".xlsx"), strings.HasSuffix(name, ".xls"):
		return ReadExcel(r, "")
	}
	return nil, faults.Validationf(faults.CodeBadParameter, "unsupported file type: %s", filename)
}

// ReadCSV parses CSV content. The first record is the header row.
func ReadCSV(r io.Reader) (*Workbook, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, faults.Validationf(faults.CodeBadParameter, "csv: %v", err)
	}
	if len(rows) == 0 {
		return nil, faults.Validationf(faults.CodeBadParameter, "empty csv")
	}
	return &Workbook{
		headers: synthesizeHeaders(rows[0]),
		rows:    rows[1:],
		sheets:  []string{"data"},
	}, nil
}

// ReadExcel parses a workbook, using the named sheet or the first sheet
// when sheet is empty. The first row is the header row.
func ReadExcel(r io.Reader, sheet string) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, faults.Validationf(faults.CodeBadParameter, "excel: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, faults.Validationf(faults.CodeBadParameter, "workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, faults.Validationf(faults.CodeBadParameter, "sheet %q: %v", sheet, err)
	}
	if len(rows) == 0 {
		return nil, faults.Validationf(faults.CodeBadParameter, "sheet %q has no data", sheet)
	}
	return &Workbook{
		headers: synthesizeHeaders(rows[0]),
		rows:    rows[1:],
		sheets:  sheets,
	}, nil
}

// synthesizeHeaders trims header cells and names blank ones Column_N.
func synthesizeHeaders(first []string) []string {
	headers := make([]string, len(first))
	for i, h := range first {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		headers[i] = h
	}
	return headers
}

// Headers returns the column names.
func (w *Workbook) Headers() []string {
	return append([]string(nil), w.headers...)
}

// Sheets returns the workbook's sheet names.
func (w *Workbook) Sheets() []string {
	return append([]string(nil), w.sheets...)
}

// RowCount returns the number of data rows.
func (w *Workbook) RowCount() int {
	return len(w.rows)
}

// ColumnValues returns the raw cells of one column by name. Rows shorter
// than the header row yield nil cells.
func (w *Workbook) ColumnValues(name string) ([]any, error) {
	idx := -1
	for i, h := range w.headers {
		if h == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, faults.Validationf(faults.CodeUnknownColumn, "column %q not found", name)
	}
	values := make([]any, len(w.rows))
	for i, row := range w.rows {
		if idx >= len(row) {
			values[i] = nil
			continue
		}
		values[i] = row[idx]
	}
	return values, nil
}

// NumericColumns lists columns where at least 80% of non-empty cells
// parse as numbers.
func (w *Workbook) NumericColumns() []string {
	var numeric []string
	for idx, name := range w.headers {
		parsable, total := 0, 0
		for _, row := range w.rows {
			if idx >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[idx])
			if cell == "" {
				continue
			}
			total++
			if _, err := strconv.ParseFloat(cell, 64); err == nil {
				parsable++
			}
		}
		if total == 0 {
			continue
		}
		if float64(parsable)/float64(total) >= 0.8 {
			numeric = append(numeric, name)
		}
	}
	return numeric
}
