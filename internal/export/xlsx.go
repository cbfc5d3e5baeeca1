package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dvloznov/revenue-tracker/internal/ledger"
)

const (
	ledgerSheet  = "Ledger"
	groupedSheet = "Grouped"

	// Built-in excel format "#,##0.00".
	moneyFormat = 4
)

var titler = cases.Title(language.English, cases.NoLower)

// Title turns a wire column name into a spreadsheet header:
// "sale__payment_amount__epp" becomes "Sale Payment Amount Epp".
func Title(column string) string {
	return titler.String(strings.Join(strings.Fields(strings.ReplaceAll(column, "_", " ")), " "))
}

// WriteXLSX writes l as a single-sheet workbook with title-cased headers.
func WriteXLSX(w io.Writer, l ledger.Ledger) error {
	cols := header(l)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = string(c)
	}
	rows := make([][]cell, len(l))
	for i := range l {
		rows[i] = rowCells(&l[i], cols)
	}
	return writeWorkbook(w, ledgerSheet, names, rows)
}

// WriteGroupedXLSX writes a grouping as a single-sheet workbook.
func WriteGroupedXLSX(w io.Writer, g ledger.Grouped) error {
	rows := make([][]cell, len(g.Groups))
	for i := range g.Groups {
		rows[i] = groupCells(&g.Groups[i], g.Time)
	}
	return writeWorkbook(w, groupedSheet, GroupedColumns(g), rows)
}

func writeWorkbook(w io.Writer, sheet string, columns []string, rows [][]cell) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	head := make([]any, len(columns))
	for i, c := range columns {
		head[i] = Title(c)
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range rows {
		values := make([]any, len(r))
		for j, c := range r {
			values[j] = c.value()
		}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := f.SetSheetRow(sheet, ref, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	moneyCols := make(map[int]bool)
	for _, r := range rows {
		for j, c := range r {
			if c.Money {
				moneyCols[j] = true
			}
		}
	}
	if len(moneyCols) > 0 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
		if err != nil {
			return fmt.Errorf("creating money style: %w", err)
		}
		for j := range moneyCols {
			name, err := excelize.ColumnNumberToName(j + 1)
			if err != nil {
				return err
			}
			if err := f.SetColStyle(sheet, name, style); err != nil {
				return fmt.Errorf("styling column %s: %w", name, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}

// value returns the typed spreadsheet value of c.
func (c cell) value() any {
	switch {
	case c.Money:
		v, _ := decimal.NewFromFloat(c.Num).Round(2).Float64()
		return v
	case c.Int:
		return int64(c.Num)
	}
	return c.Text
}
