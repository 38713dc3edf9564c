package parsers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func TestCSVParser_Parse(t *testing.T) {
	data := "User ID, Customer Name ,First Deposit\n" +
		"U1,Alice,100\n" +
		"U2,,\n" +
		",,\n" +
		"U3,\"Rossi, Mario\",5\n"

	records, err := (&CSVParser{}).Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, models.Record{"User ID": "U1", "Customer Name": "Alice", "First Deposit": "100"}, records[0])
	assert.Equal(t, models.Record{"User ID": "U2", "Customer Name": nil, "First Deposit": nil}, records[1])
	assert.Equal(t, "Rossi, Mario", records[2]["Customer Name"])
}

func TestCSVParser_Semicolons(t *testing.T) {
	records, err := (&CSVParser{}).Parse([]byte("User ID;Withdrawals\nU1;1,5\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1,5", records[0]["Withdrawals"])
}

func TestCSVParser_RaggedRows(t *testing.T) {
	records, err := (&CSVParser{}).Parse([]byte("A,B,C\n1,2\n1,2,3,4\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.Record{"A": "1", "B": "2", "C": nil}, records[0])
	assert.Equal(t, models.Record{"A": "1", "B": "2", "C": "3"}, records[1])
}

func TestCSVParser_DuplicateHeaders(t *testing.T) {
	records, err := (&CSVParser{}).Parse([]byte("User ID,Note,Note\nU1,a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, models.Record{"User ID": "U1", "Note": "a", "Note_1": "b"}, records[0])
}

func TestCSVParser_HeaderOnly(t *testing.T) {
	records, err := (&CSVParser{}).Parse([]byte("User ID,Customer Name\n"))
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = (&CSVParser{}).Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCSVParser_Encodings(t *testing.T) {
	t.Run("utf-8 bom", func(t *testing.T) {
		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("User ID,Customer Name\nU1,Zoë\n")...)
		records, err := (&CSVParser{}).Parse(data)
		require.NoError(t, err)
		assert.Equal(t, models.Record{"User ID": "U1", "Customer Name": "Zoë"}, records[0])
	})

	t.Run("utf-16le bom", func(t *testing.T) {
		enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
		data, err := enc.Bytes([]byte("User ID,Customer Name\nU1,Zoë\n"))
		require.NoError(t, err)

		records, err := (&CSVParser{}).Parse(data)
		require.NoError(t, err)
		assert.Equal(t, models.Record{"User ID": "U1", "Customer Name": "Zoë"}, records[0])
	})

	t.Run("windows-1252", func(t *testing.T) {
		data := []byte("User ID,Customer Name\nU1,Jos\xe9\n")
		records, err := (&CSVParser{}).Parse(data)
		require.NoError(t, err)
		assert.Equal(t, "José", records[0]["Customer Name"])
	})
}

func TestCSVParser_Read(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ActivityRe-1.csv")
	require.NoError(t, os.WriteFile(path, []byte("User ID,Lot Amount\nU1,2\n"), 0644))

	records, err := (&CSVParser{}).Read(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Record{{"User ID": "U1", "Lot Amount": "2"}}, records)

	_, err = (&CSVParser{}).Read(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestPick(t *testing.T) {
	assert.IsType(t, &XLSXParser{}, Pick("Registrati-2024.xlsx"))
	assert.IsType(t, &XLSXParser{}, Pick("REPORT.XLSX"))
	assert.IsType(t, &CSVParser{}, Pick("ActivityRe-2024.csv"))
	assert.Nil(t, Pick("statement.pdf"))
	assert.Nil(t, Pick("noext"))
}
