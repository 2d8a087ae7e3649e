package core

// codec.go reads and writes the flat table format: a header row followed by
// data rows, UTF-8, comma separated.
//
// Editors sometimes round-trip files through spreadsheet programs, so the
// reader drops a leading UTF-8 BOM and replaces invalid UTF-8 with '?'.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns r positioned after a leading UTF-8 BOM, if any.
func skipBOM(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}
	return br, nil
}

// decodeRows parses a table. Rows whose cells are all empty are dropped.
// Records shorter than the header leave the missing columns empty; cells
// beyond the header are ignored.
func decodeRows(r io.Reader) (header []string, rows []Row, err error) {
	r, err = skipBOM(r)
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	data = bytes.ToValidUTF8(data, []byte("?"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err = cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("invalid csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("invalid csv: %w", err)
		}

		row := make(Row, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		if row.IsBlank() {
			continue
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}

// encodeRows serializes rows under the registered columns, followed by any
// extra columns found in the rows, sorted by name.
func encodeRows(columns []string, rows []Row) ([]byte, error) {
	header := writeColumns(columns, rows)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	rec := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			rec[i] = row[col]
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeColumns(columns []string, rows []Row) []string {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}

	var extra []string
	for _, row := range rows {
		for col := range row {
			if col != "" && !known[col] {
				known[col] = true
				extra = append(extra, col)
			}
		}
	}
	sort.Strings(extra)

	header := make([]string, 0, len(columns)+len(extra))
	header = append(header, columns...)
	return append(header, extra...)
}
