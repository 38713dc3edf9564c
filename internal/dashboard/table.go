// Package dashboard is the presentation side of the reconciled rows: column
// discovery, filtering, summary figures, local flag overrides and export.
package dashboard

import (
	"strconv"
	"strings"
	"time"

	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/juank/cpa-dashboard/backend/internal/processor/common"
)

// Columns returns the field set of the first row, or nil for no rows.
func Columns(rows []models.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, len(models.Columns))
	copy(cols, models.Columns)
	return cols
}

// Cell stringifies one field of r. Absent values and unknown columns are "".
func Cell(r models.Row, col string) string {
	switch col {
	case models.ColNome:
		return str(r.Nome)
	case models.ColUserID:
		return r.UserID
	case models.ColData:
		return date(r.Data)
	case models.ColImporto:
		return number(r.Importo)
	case models.ColPrelievi:
		return number(r.Prelievi)
	case models.ColCommissioni:
		return number(r.Commissioni)
	case models.ColDataQualifica:
		return date(r.DataQualifica)
	case models.ColTempoQual:
		if r.TempoQual == nil {
			return ""
		}
		return strconv.Itoa(*r.TempoQual)
	}
	if v, ok := r.Flag(col); ok {
		return strconv.Itoa(v)
	}
	return ""
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return common.FormatTime(*t)
}

func number(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// Filter holds per-column substring filters and one global search term.
// All matching is case-insensitive and every non-empty term must match.
type Filter struct {
	Columns map[string]string `json:"filters"`
	Global  string            `json:"global"`
}

// Empty reports whether the filter lets every row through.
func (f Filter) Empty() bool {
	if f.Global != "" {
		return false
	}
	for _, v := range f.Columns {
		if v != "" {
			return false
		}
	}
	return true
}

// Apply returns the rows matching f, in their original order.
func (f Filter) Apply(rows []models.Row) []models.Row {
	out := make([]models.Row, 0, len(rows))
	if f.Empty() {
		return append(out, rows...)
	}
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Match reports whether r passes every column filter and the global filter.
func (f Filter) Match(r models.Row) bool {
	for col, term := range f.Columns {
		if term == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(Cell(r, col)), strings.ToLower(term)) {
			return false
		}
	}
	if f.Global == "" {
		return true
	}
	values := make([]string, len(models.Columns))
	for i, col := range models.Columns {
		values[i] = Cell(r, col)
	}
	hay := strings.ToLower(strings.Join(values, " "))
	return strings.Contains(hay, strings.ToLower(f.Global))
}
