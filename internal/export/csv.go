package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

// WriteCSV writes l with a LedgerColumns header. Money is written with two
// decimals.
func WriteCSV(w io.Writer, l ledger.Ledger) error {
	cols := header(l)
	records := make([][]string, 0, len(l)+1)
	head := make([]string, len(cols))
	for i, c := range cols {
		head[i] = string(c)
	}
	records = append(records, head)
	for i := range l {
		records = append(records, formatCells(rowCells(&l[i], cols)))
	}
	return writeRecords(w, records)
}

// WriteGroupedCSV writes one line per group under GroupedColumns.
func WriteGroupedCSV(w io.Writer, g ledger.Grouped) error {
	records := [][]string{GroupedColumns(g)}
	for i := range g.Groups {
		records = append(records, formatCells(groupCells(&g.Groups[i], g.Time)))
	}
	return writeRecords(w, records)
}

func formatCells(cells []cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.String()
	}
	return out
}

func writeRecords(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}
