// Package sheet turns a normalized CSV snapshot into food place records.
package sheet

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one parsed CSV record with the 1-based line it started on.
type Row struct {
	Line  int
	Cells []string
}

// ParseCSV parses RFC4180 text. Quoted fields may hold commas, newlines and
// doubled quotes. Rows whose cells are all blank are dropped.
func ParseCSV(text string) ([][]string, error) {
	rows, err := ParseRows(text)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Cells
	}
	return out, nil
}

// ParseRows is ParseCSV keeping line numbers for diagnostics.
func ParseRows(text string) ([]Row, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []Row
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "sheet: parse csv")
		}
		if blank(rec) {
			continue
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, Row{Line: line, Cells: rec})
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
