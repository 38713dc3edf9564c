package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is one loosely-typed spreadsheet row: column name -> raw value.
type Record map[string]any

// Get returns the raw value stored under field, or nil when it is missing.
func (r Record) Get(field string) any {
	if r == nil {
		return nil
	}
	return r[field]
}

// Output column names, in declared order.
const (
	ColNome          = "NOME"
	ColUserID        = "USER ID"
	ColData          = "DATA"
	ColRegistrato    = "REGISTRATO"
	ColDepositato    = "DEPOSITATO"
	ColImporto       = "IMPORTO"
	ColPrelievi      = "PRELIEVI"
	ColOperativo     = "OPERATIVO"
	ColQualificato   = "QUALIFICATO"
	ColCommissioni   = "COMMISSIONI"
	ColDataQualifica = "DATA QUALIFICA"
	ColTempoQual     = "TEMPO QUAL"
	ColNoCommissioni = "NO COMMISSIONI"
)

// Columns lists the Row fields in the order they are rendered and exported.
var Columns = []string{
	ColNome,
	ColUserID,
	ColData,
	ColRegistrato,
	ColDepositato,
	ColImporto,
	ColPrelievi,
	ColOperativo,
	ColQualificato,
	ColCommissioni,
	ColDataQualifica,
	ColTempoQual,
	ColNoCommissioni,
}

// FlagColumns are the 0/1 columns of a Row.
var FlagColumns = []string{
	ColRegistrato,
	ColDepositato,
	ColOperativo,
	ColQualificato,
	ColNoCommissioni,
}

// IsFlagColumn reports whether col holds a 0/1 flag.
func IsFlagColumn(col string) bool {
	for _, c := range FlagColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Row is the reconciled view of one client.
type Row struct {
	Nome          *string    `json:"NOME"`
	UserID        string     `json:"USER ID"`
	Data          *time.Time `json:"DATA"`
	Registrato    int        `json:"REGISTRATO"`
	Depositato    int        `json:"DEPOSITATO"`
	Importo       *float64   `json:"IMPORTO"`
	Prelievi      *float64   `json:"PRELIEVI"`
	Operativo     int        `json:"OPERATIVO"`
	Qualificato   int        `json:"QUALIFICATO"`
	Commissioni   *float64   `json:"COMMISSIONI"`
	DataQualifica *time.Time `json:"DATA QUALIFICA"`
	TempoQual     *int       `json:"TEMPO QUAL"`
	NoCommissioni int        `json:"NO COMMISSIONI"`
}

// ISOLayout is the string form of every date leaving the backend.
const ISOLayout = "2006-01-02T15:04:05.000Z"

type rowJSON struct {
	Nome          *string  `json:"NOME"`
	UserID        string   `json:"USER ID"`
	Data          *string  `json:"DATA"`
	Registrato    int      `json:"REGISTRATO"`
	Depositato    int      `json:"DEPOSITATO"`
	Importo       *float64 `json:"IMPORTO"`
	Prelievi      *float64 `json:"PRELIEVI"`
	Operativo     int      `json:"OPERATIVO"`
	Qualificato   int      `json:"QUALIFICATO"`
	Commissioni   *float64 `json:"COMMISSIONI"`
	DataQualifica *string  `json:"DATA QUALIFICA"`
	TempoQual     *int     `json:"TEMPO QUAL"`
	NoCommissioni int      `json:"NO COMMISSIONI"`
}

// MarshalJSON keeps the column order and writes dates in ISOLayout.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(rowJSON{
		Nome:          r.Nome,
		UserID:        r.UserID,
		Data:          isoString(r.Data),
		Registrato:    r.Registrato,
		Depositato:    r.Depositato,
		Importo:       r.Importo,
		Prelievi:      r.Prelievi,
		Operativo:     r.Operativo,
		Qualificato:   r.Qualificato,
		Commissioni:   r.Commissioni,
		DataQualifica: isoString(r.DataQualifica),
		TempoQual:     r.TempoQual,
		NoCommissioni: r.NoCommissioni,
	})
}

func isoString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(ISOLayout)
	return &s
}

// Flag returns the value of a flag column and whether col is one.
func (r Row) Flag(col string) (int, bool) {
	switch col {
	case ColRegistrato:
		return r.Registrato, true
	case ColDepositato:
		return r.Depositato, true
	case ColOperativo:
		return r.Operativo, true
	case ColQualificato:
		return r.Qualificato, true
	case ColNoCommissioni:
		return r.NoCommissioni, true
	}
	return 0, false
}

// WithFlag returns a copy of r with the flag column set to v.
func (r Row) WithFlag(col string, v int) Row {
	switch col {
	case ColRegistrato:
		r.Registrato = v
	case ColDepositato:
		r.Depositato = v
	case ColOperativo:
		r.Operativo = v
	case ColQualificato:
		r.Qualificato = v
	case ColNoCommissioni:
		r.NoCommissioni = v
	}
	return r
}

// Client is the persisted form of a Row, keyed by UserID.
type Client struct {
	UserID        string     `json:"user_id" db:"user_id"`
	Nome          *string    `json:"nome" db:"nome"`
	Data          *time.Time `json:"data" db:"data"`
	Registrato    bool       `json:"registrato" db:"registrato"`
	Depositato    bool       `json:"depositato" db:"depositato"`
	Importo       *float64   `json:"importo" db:"importo"`
	Prelievi      *float64   `json:"prelievi" db:"prelievi"`
	Operativo     bool       `json:"operativo" db:"operativo"`
	Qualificato   bool       `json:"qualificato" db:"qualificato"`
	Commissioni   *float64   `json:"commissioni" db:"commissioni"`
	DataQualifica *time.Time `json:"data_qualifica" db:"data_qualifica"`
	TempoQual     *int       `json:"tempo_qual" db:"tempo_qual"`
	NoCommissioni bool       `json:"no_commissioni" db:"no_commissioni"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// ClientFromRow converts a reconciled row into its stored form.
func ClientFromRow(r Row) Client {
	return Client{
		UserID:        r.UserID,
		Nome:          r.Nome,
		Data:          r.Data,
		Registrato:    r.Registrato != 0,
		Depositato:    r.Depositato != 0,
		Importo:       r.Importo,
		Prelievi:      r.Prelievi,
		Operativo:     r.Operativo != 0,
		Qualificato:   r.Qualificato != 0,
		Commissioni:   r.Commissioni,
		DataQualifica: r.DataQualifica,
		TempoQual:     r.TempoQual,
		NoCommissioni: r.NoCommissioni != 0,
	}
}

// Upload records one processing run over a pair of reports.
type Upload struct {
	ID                uuid.UUID `json:"id" db:"id"`
	RegistrationsFile string    `json:"registrations_file" db:"registrations_file"`
	ActivityFile      string    `json:"activity_file" db:"activity_file"`
	Rows              int       `json:"rows" db:"row_count"`
	Status            string    `json:"status" db:"status"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
