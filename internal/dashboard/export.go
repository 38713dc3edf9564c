package dashboard

import (
	"io"
	"strings"

	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Dashboard"

// WriteCSV writes a header line of columns and one line per row. Lines are
// joined by CRLF with no trailing separator. Nothing is written when columns
// is empty.
func WriteCSV(w io.Writer, columns []string, rows []models.Row) error {
	if len(columns) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(csvLine(columns))
	fields := make([]string, len(columns))
	for _, r := range rows {
		for i, col := range columns {
			fields[i] = Cell(r, col)
		}
		b.WriteString("\r\n")
		b.WriteString(csvLine(fields))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func csvLine(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = csvField(f)
	}
	return strings.Join(quoted, ",")
}

// csvField quotes values holding a comma, quote or line break and doubles
// the inner quotes.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteXLSX writes the same table as WriteCSV as a one-sheet workbook.
// Amounts and flags stay numeric; dates are ISO strings.
func WriteXLSX(w io.Writer, columns []string, rows []models.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if len(columns) == 0 {
		return f.Write(w)
	}

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(columns))
		for j, col := range columns {
			values[j] = xlsxValue(r, col)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func xlsxValue(r models.Row, col string) any {
	switch col {
	case models.ColImporto:
		return floatOrNil(r.Importo)
	case models.ColPrelievi:
		return floatOrNil(r.Prelievi)
	case models.ColCommissioni:
		return floatOrNil(r.Commissioni)
	case models.ColTempoQual:
		if r.TempoQual == nil {
			return nil
		}
		return *r.TempoQual
	}
	if v, ok := r.Flag(col); ok {
		return v
	}
	if s := Cell(r, col); s != "" {
		return s
	}
	return nil
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
