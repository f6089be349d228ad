package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoHeader is returned for files that contain no header row.
var ErrNoHeader = errors.New("empty file: no header row found")

// Warning is a non-fatal issue found while parsing. Row uses the
// file's display numbering: the header is row 1, the first data row
// is row 2.
type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Table is a parsed CSV file. Every row carries exactly the header
// set as keys; short rows are padded and long rows truncated to keep
// that invariant. A header-only file is valid and has zero rows.
type Table struct {
	Headers  []string            `json:"headers"`
	Rows     []map[string]string `json:"rows"`
	Warnings []Warning           `json:"warnings,omitempty"`
}

// Parse reads a CSV file into a Table. Input may be UTF-8 (with or
// without BOM) or UTF-16 with BOM. Headers and cells are
// whitespace-trimmed, blank or duplicate headers are renamed so they
// can serve as map keys, and fully blank rows are dropped.
func Parse(data []byte) (*Table, error) {
	decoded, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode file: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	// Column-count mismatches are handled here with pad/truncate,
	// and real-world exports are sloppy about quoting.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	headers = normalizeHeaders(headers)
	headerCount := len(headers)

	table := &Table{
		Headers: headers,
		Rows:    []map[string]string{},
	}

	rowNum := 1 // header row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++

		if err != nil {
			table.Warnings = append(table.Warnings, Warning{
				Row:     rowNum,
				Message: fmt.Sprintf("parse error, row skipped: %v", err),
			})
			continue
		}

		if len(record) != headerCount {
			if len(record) < headerCount {
				table.Warnings = append(table.Warnings, Warning{
					Row:     rowNum,
					Message: fmt.Sprintf("row has %d columns, expected %d; padded with empty values", len(record), headerCount),
				})
				padded := make([]string, headerCount)
				copy(padded, record)
				record = padded
			} else {
				table.Warnings = append(table.Warnings, Warning{
					Row:     rowNum,
					Message: fmt.Sprintf("row has %d columns, expected %d; extra columns dropped", len(record), headerCount),
				})
				record = record[:headerCount]
			}
		}

		row := make(map[string]string, headerCount)
		blank := true
		for i, h := range headers {
			v := strings.TrimSpace(record[i])
			if v != "" {
				blank = false
			}
			row[h] = v
		}
		if blank {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// decode converts the raw bytes to UTF-8. A UTF-16 BOM switches the
// decoder; a UTF-8 BOM is stripped.
func decode(data []byte) ([]byte, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeHeaders trims headers and guarantees non-empty, unique
// names: blank headers become positional (column_3), duplicates get a
// numeric suffix (phone_2).
func normalizeHeaders(headers []string) []string {
	seen := make(map[string]bool, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		name := h
		for n := 2; seen[name]; n++ {
			name = fmt.Sprintf("%s_%d", h, n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
