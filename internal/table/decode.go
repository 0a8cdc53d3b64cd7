package table

// decode.go turns uploaded export files into Tables.
//
// E-commerce platforms emit CSVs in whatever encoding the merchant's
// spreadsheet tool last saved: UTF-8 with or without BOM, ISO-8859-1, or
// Windows-1252. Decoding retries each in order; a file that cannot be
// parsed under any of them is unusable and reported as such. XLSX exports
// are read through excelize (first sheet only).

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// utf8BOM is the byte-order mark some tools prepend to UTF-8 CSVs.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// fallbackCharmaps are tried, in order, when the raw bytes are not valid
// UTF-8. ISO-8859-1 assigns every byte value, so one of these always
// yields text; failure past this point means the CSV structure is broken.
var fallbackCharmaps = []*charmap.Charmap{
	charmap.ISO8859_1,
	charmap.Windows1252,
}

// DecodeError reports a file that could not be turned into a table.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeCSV parses delimited text into a Table, retrying text encodings.
// The first record is the header row; header and cells are cleaned of
// Excel artifacts. Fully empty rows are dropped.
func DecodeCSV(name string, data []byte) (*Table, error) {
	var lastErr error
	for _, text := range decodeCandidates(data) {
		records, err := parseCSV(text)
		if err != nil {
			lastErr = err
			continue
		}
		t, err := fromRecords(name, records)
		if err != nil {
			lastErr = err
			continue
		}
		return t, nil
	}
	return nil, &DecodeError{Name: name, Err: lastErr}
}

// DecodeXLSX parses the first sheet of an Excel workbook into a Table.
func DecodeXLSX(name string, data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DecodeError{Name: name, Err: fmt.Errorf("workbook has no sheets")}
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}

	t, err := fromRecords(name, records)
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	return t, nil
}

// Decode picks the parser from the file name extension. Anything that is
// not .xlsx is treated as delimited text.
func Decode(name string, data []byte) (*Table, error) {
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		return DecodeXLSX(name, data)
	}
	return DecodeCSV(name, data)
}

// decodeCandidates returns the plausible text renderings of raw bytes,
// best guess first.
func decodeCandidates(data []byte) [][]byte {
	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) {
		return [][]byte{data}
	}

	var out [][]byte
	for _, cm := range fallbackCharmaps {
		decoded, err := cm.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		out = append(out, decoded)
	}
	return out
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// fromRecords builds a Table from parsed records: the first non-empty
// row is the header, remaining rows are data, empty rows dropped.
// Exports sometimes lead with blank lines before the header.
func fromRecords(name string, records [][]string) (*Table, error) {
	for len(records) > 0 && isEmptyRow(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = CleanHeader(h)
	}

	t := New(name, header)
	for _, row := range records[1:] {
		if isEmptyRow(row) {
			continue
		}
		cleaned := make([]string, len(row))
		for i, cell := range row {
			cleaned[i] = CleanCell(cell)
		}
		t.Rows = append(t.Rows, cleaned)
	}
	return t, nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
