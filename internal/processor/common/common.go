package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/xuri/excelize/v2"
)

// RecordReader defines the interface for the report file parsers
type RecordReader interface {
	Read(filePath string) ([]models.Record, error)
}

// ErrMissingUserID is returned when a payload row carries no identifier.
var ErrMissingUserID = errors.New("missing USER ID")

// ISOLayout is the string form used for every date leaving the backend.
const ISOLayout = models.ISOLayout

// Zone-less layouts are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// ToNumber reads v as a finite float. Absent, empty and non-numeric values
// report false; a whitespace-only string reads as 0.
func ToNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		return ToNumber(n.String())
	case string:
		if n == "" {
			return 0, false
		}
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NumberPtr is ToNumber returning nil for absent values.
func NumberPtr(v any) *float64 {
	f, ok := ToNumber(v)
	if !ok {
		return nil
	}
	return &f
}

// NumberOr is ToNumber with a default for absent values.
func NumberOr(v any, def float64) float64 {
	if f, ok := ToNumber(v); ok {
		return f
	}
	return def
}

// ToDate parses v as an instant. Numbers are Excel serial dates; strings go
// through the known layouts. Failures report false.
func ToDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return d.UTC(), true
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return ToDate(*d)
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	case bool:
		return time.Time{}, false
	}
	serial, ok := ToNumber(v)
	if !ok || serial == 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// DatePtr is ToDate returning nil for absent values.
func DatePtr(v any) *time.Time {
	t, ok := ToDate(v)
	if !ok {
		return nil
	}
	return &t
}

// ToString renders v the way a spreadsheet cell reads. nil becomes "".
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	case time.Time:
		return FormatTime(s)
	}
	return fmt.Sprint(v)
}

// FormatTime renders t in ISOLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// Truthy follows loose-typed truthiness: nil, false, 0, NaN and "" are false.
func Truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	case float64:
		return b != 0 && !math.IsNaN(b)
	case float32:
		return b != 0 && !math.IsNaN(float64(b))
	case int:
		return b != 0
	case int64:
		return b != 0
	case json.Number:
		f, err := b.Float64()
		return err == nil && f != 0
	}
	return true
}

// ClientFromFields maps a loosely-typed output row onto the stored columns.
func ClientFromFields(fields map[string]any) (models.Client, error) {
	id := ToString(fields[models.ColUserID])
	if id == "" {
		return models.Client{}, ErrMissingUserID
	}

	c := models.Client{
		UserID:        id,
		Data:          DatePtr(fields[models.ColData]),
		Registrato:    Truthy(fields[models.ColRegistrato]),
		Depositato:    Truthy(fields[models.ColDepositato]),
		Importo:       NumberPtr(fields[models.ColImporto]),
		Prelievi:      NumberPtr(fields[models.ColPrelievi]),
		Operativo:     Truthy(fields[models.ColOperativo]),
		Qualificato:   Truthy(fields[models.ColQualificato]),
		Commissioni:   NumberPtr(fields[models.ColCommissioni]),
		DataQualifica: DatePtr(fields[models.ColDataQualifica]),
		NoCommissioni: Truthy(fields[models.ColNoCommissioni]),
	}
	if nome := fields[models.ColNome]; nome != nil {
		s := ToString(nome)
		c.Nome = &s
	}
	if days, ok := ToNumber(fields[models.ColTempoQual]); ok {
		n := int(math.Trunc(days))
		c.TempoQual = &n
	}
	return c, nil
}
