package corpus

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	errNoHeader   = errors.New("no header row")
	errWideRow    = errors.New("row has more fields than the header")
	errEmptySheet = errors.New("workbook has no non-empty sheet")
)

// delimiterFor picks the field separator for a delimited member.
// .txt members are sniffed from their first line.
func delimiterFor(ext, text string) rune {
	switch ext {
	case ".tsv":
		return '\t'
	case ".txt":
		return sniffDelimiter(text)
	default:
		return ','
	}
}

func sniffDelimiter(text string) rune {
	line, _, _ := strings.Cut(text, "\n")
	best, bestCount := ',', 0
	for _, d := range []rune{',', '\t', ';', '|'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// parseDelimited reads a header-first table. Short rows are padded; rows wider
// than the header are an error.
func parseDelimited(text string, comma rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		if len(rows) == 0 && isBlank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, errNoHeader
	}
	return normalizeWidth(rows, true)
}

// parseWorkbook returns the rows of every non-empty sheet, in workbook order.
func parseWorkbook(data []byte) ([]sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sheets []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		for len(rows) > 0 && isBlank(rows[0]) {
			rows = rows[1:]
		}
		if len(rows) == 0 {
			continue
		}
		// Spreadsheet rows drop trailing empty cells, so wide rows are kept.
		rows, _ = normalizeWidth(rows, false)
		sheets = append(sheets, sheet{name: name, rows: rows})
	}
	if len(sheets) == 0 {
		return nil, errEmptySheet
	}
	return sheets, nil
}

type sheet struct {
	name string
	rows [][]string
}

func normalizeWidth(rows [][]string, strict bool) ([][]string, error) {
	width := len(rows[0])
	if !strict {
		for _, r := range rows {
			width = max(width, len(r))
		}
	}
	for i, r := range rows {
		switch {
		case len(r) > width:
			return nil, fmt.Errorf("line %d: %w", i+1, errWideRow)
		case len(r) < width:
			padded := make([]string, width)
			copy(padded, r)
			rows[i] = padded
		}
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// serialize writes rows as comma-separated text with a header line,
// quoting only where needed and using \n line ends.
func serialize(rows [][]string) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	return b.String(), nil
}
