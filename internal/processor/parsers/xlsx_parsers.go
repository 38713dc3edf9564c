package parsers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/juank/cpa-dashboard/backend/internal/processor/common"
	"github.com/xuri/excelize/v2"
)

// XLSXParser reads the first sheet of a workbook unless Sheet is set.
type XLSXParser struct {
	Sheet string
}

func (p *XLSXParser) Read(filePath string) ([]models.Record, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.readWorkbook(f)
}

func (p *XLSXParser) readWorkbook(f *excelize.File) ([]models.Record, error) {
	sheet := p.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	headerIdx := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, nil
	}
	headers := uniqueHeaders(rows[headerIdx])

	dates := &dateStyles{f: f, sheet: sheet, known: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		dates.date1904 = *props.Date1904
	}

	var records []models.Record
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		rec := make(models.Record, len(headers))
		for col, h := range headers {
			if h == "" {
				continue
			}
			if col >= len(row) || row[col] == "" {
				rec[h] = nil
				continue
			}
			rec[h] = dates.value(col+1, i+1, row[col])
		}
		records = append(records, rec)
	}
	return records, nil
}

// dateStyles turns serial numbers in date-formatted cells into ISO strings.
type dateStyles struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	known    map[int]bool
}

func (d *dateStyles) value(col, row int, raw string) any {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil || !d.isDate(cell) {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return raw
	}
	return common.FormatTime(t)
}

func (d *dateStyles) isDate(cell string) bool {
	id, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := d.known[id]; ok {
		return v
	}
	style, err := d.f.GetStyle(id)
	isDate := err == nil && isDateFormat(style.NumFmt, style.CustomNumFmt)
	d.known[id] = isDate
	return isDate
}

func isDateFormat(numFmt int, custom *string) bool {
	if custom != nil && *custom != "" {
		return isDatePattern(*custom)
	}
	switch {
	case numFmt >= 14 && numFmt <= 22:
		return true
	case numFmt >= 45 && numFmt <= 47:
		return true
	}
	return false
}

// isDatePattern looks for date tokens outside quoted literals and [...] blocks.
func isDatePattern(pattern string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(pattern) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	return strings.ContainsAny(s, "yd") || (strings.Contains(s, "h") && strings.Contains(s, ":"))
}
