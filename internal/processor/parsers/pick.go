package parsers

import (
	"path/filepath"
	"strings"

	"github.com/juank/cpa-dashboard/backend/internal/processor/common"
)

// Pick returns the reader for a report file, or nil when the extension is
// not supported.
func Pick(filename string) common.RecordReader {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return &XLSXParser{}
	case ".csv", ".txt":
		return &CSVParser{}
	}
	return nil
}
