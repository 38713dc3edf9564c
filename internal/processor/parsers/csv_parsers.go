package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/juank/cpa-dashboard/backend/internal/models"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// CSVParser reads a delimited export where the first line holds the headers.
type CSVParser struct{}

func (p *CSVParser) Read(filePath string) ([]models.Record, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return p.Parse(raw)
}

// Parse decodes data to UTF-8 and turns every line after the header into a
// record. Short rows are padded with nil, long rows are truncated.
func (p *CSVParser) Parse(data []byte) ([]models.Record, error) {
	decoded, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = detectSeparator(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	headers := uniqueHeaders(rows[0])

	var records []models.Record
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(models.Record, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i >= len(row) || row[i] == "" {
				rec[h] = nil
				continue
			}
			rec[h] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeText converts BOM-marked UTF-8/UTF-16 or plain UTF-8 to UTF-8 without
// a BOM. Anything else is read as Windows-1252.
func DecodeText(data []byte) ([]byte, error) {
	hasBOM := bytes.HasPrefix(data, bomUTF8) ||
		bytes.HasPrefix(data, bomUTF16LE) ||
		bytes.HasPrefix(data, bomUTF16BE)

	if hasBOM || utf8.Valid(data) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		return out, err
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	return out, err
}

func detectSeparator(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

// uniqueHeaders trims header names and suffixes repeats with _1, _2...
func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	headers := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n+1)
		} else {
			seen[h] = 0
		}
		headers[i] = h
	}
	return headers
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
