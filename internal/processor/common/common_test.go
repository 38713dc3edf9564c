package common

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"nil", nil, 0, false},
		{"empty string", "", 0, false},
		{"blank string", "   ", 0, true},
		{"tab string", "\t", 0, true},
		{"not a number", "N/A", 0, false},
		{"decimal string", "12.5", 12.5, true},
		{"padded string", " 7 ", 7, true},
		{"negative", "-3", -3, true},
		{"exponent", "1e3", 1000, true},
		{"nan string", "NaN", 0, false},
		{"inf string", "Infinity", 0, false},
		{"nan float", math.NaN(), 0, false},
		{"float", 2.25, 2.25, true},
		{"int", 3, 3, true},
		{"int64", int64(9), 9, true},
		{"true", true, 1, true},
		{"false", false, 0, true},
		{"json number", json.Number("4.5"), 4.5, true},
		{"time", time.Now(), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumberHelpers(t *testing.T) {
	assert.Nil(t, NumberPtr("x"))
	require.NotNil(t, NumberPtr("0"))
	assert.Equal(t, 0.0, *NumberPtr("0"))
	assert.Equal(t, 5.0, NumberOr(nil, 5))
	assert.Equal(t, 2.0, NumberOr("2", 5))
}

func TestToDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"iso date", "2024-01-11", "2024-01-11T00:00:00.000Z"},
		{"iso with zone", "2024-01-11T10:00:00+02:00", "2024-01-11T08:00:00.000Z"},
		{"iso millis", "2024-01-11T10:00:00.250Z", "2024-01-11T10:00:00.250Z"},
		{"date time", "2024-01-11 09:30:00", "2024-01-11T09:30:00.000Z"},
		{"us date", "01/15/2024", "2024-01-15T00:00:00.000Z"},
		{"short us date", "1/5/2024", "2024-01-05T00:00:00.000Z"},
		{"excel default", "01-15-24", "2024-01-15T00:00:00.000Z"},
		{"month name", "Jan 15, 2024", "2024-01-15T00:00:00.000Z"},
		{"excel serial", float64(45306), "2024-01-15T00:00:00.000Z"},
		{"time value", time.Date(2024, 1, 15, 1, 0, 0, 0, time.FixedZone("CET", 3600)), "2024-01-15T00:00:00.000Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToDate(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, FormatTime(got))
		})
	}
}

func TestToDateInvalid(t *testing.T) {
	for _, in := range []any{nil, "", "  ", "not a date", "2024-13-45", 0, false, true, time.Time{}} {
		_, ok := ToDate(in)
		assert.False(t, ok, "%#v", in)
	}
	assert.Nil(t, DatePtr("nope"))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "abc", ToString("abc"))
	assert.Equal(t, "12345", ToString(float64(12345)))
	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "7", ToString(7))
	assert.Equal(t, "true", ToString(true))
	assert.Equal(t, "2024-01-01T00:00:00.000Z", ToString(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestTruthy(t *testing.T) {
	truthy := []any{1, 1.0, "0", "x", true, map[string]any{}, []any{}, json.Number("2")}
	falsy := []any{nil, 0, 0.0, "", false, math.NaN(), json.Number("0")}
	for _, v := range truthy {
		assert.True(t, Truthy(v), "%#v", v)
	}
	for _, v := range falsy {
		assert.False(t, Truthy(v), "%#v", v)
	}
}

func TestClientFromFields(t *testing.T) {
	c, err := ClientFromFields(map[string]any{
		"USER ID":        "U1",
		"NOME":           "Alice",
		"DATA":           "2024-01-01T00:00:00.000Z",
		"REGISTRATO":     float64(1),
		"DEPOSITATO":     float64(0),
		"IMPORTO":        float64(100),
		"PRELIEVI":       nil,
		"OPERATIVO":      true,
		"QUALIFICATO":    float64(1),
		"COMMISSIONI":    "12.5",
		"DATA QUALIFICA": "2024-01-11T00:00:00.000Z",
		"TEMPO QUAL":     float64(10),
		"NO COMMISSIONI": float64(0),
		"EXTRA":          "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "U1", c.UserID)
	assert.Equal(t, "Alice", *c.Nome)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", FormatTime(*c.Data))
	assert.True(t, c.Registrato)
	assert.False(t, c.Depositato)
	assert.Equal(t, 100.0, *c.Importo)
	assert.Nil(t, c.Prelievi)
	assert.True(t, c.Operativo)
	assert.True(t, c.Qualificato)
	assert.Equal(t, 12.5, *c.Commissioni)
	assert.Equal(t, 10, *c.TempoQual)
	assert.False(t, c.NoCommissioni)
}

func TestClientFromFieldsSparse(t *testing.T) {
	c, err := ClientFromFields(map[string]any{"USER ID": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, models.Client{UserID: "42"}, c)
}

func TestClientFromFieldsMissingID(t *testing.T) {
	_, err := ClientFromFields(map[string]any{"NOME": "x"})
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = ClientFromFields(map[string]any{"USER ID": ""})
	assert.ErrorIs(t, err, ErrMissingUserID)
}
