package ingest

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const utf8BOM = "\uFEFF"

// DecodeText converts raw upload bytes to a string. UTF-16 exports are
// recognised by their byte order mark; everything else is read as UTF-8.
func DecodeText(raw []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", fmt.Errorf("DecodeText: %w", err)
	}
	return strings.TrimPrefix(string(out), utf8BOM), nil
}

// Tokenize splits CSV text into rows of cells.
//
// Quoted cells may span commas and line breaks, and "" inside quotes is a
// literal quote. CRLF, LF and lone CR all end a row. A quote that is never
// closed swallows the rest of the input into the current cell.
func Tokenize(text string) [][]string {
	text = strings.TrimPrefix(text, utf8BOM)

	var (
		rows     [][]string
		row      []string
		cell     strings.Builder
		inQuotes bool
		dirty    bool
	)

	endCell := func() {
		row = append(row, cell.String())
		cell.Reset()
	}
	endRow := func() {
		endCell()
		rows = append(rows, row)
		row = nil
		dirty = false
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					cell.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
				continue
			}
			cell.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			inQuotes = true
			dirty = true
		case ',':
			endCell()
			dirty = true
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endRow()
		case '\n':
			endRow()
		default:
			cell.WriteByte(c)
			dirty = true
		}
	}

	if dirty || cell.Len() > 0 || len(row) > 0 {
		endRow()
	}

	return rows
}

// isBlankRow reports whether every cell of row is whitespace.
func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// nonBlankRows drops rows that carry no data.
func nonBlankRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		if !isBlankRow(r) {
			out = append(out, r)
		}
	}
	return out
}
