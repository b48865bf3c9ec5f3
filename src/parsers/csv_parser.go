package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ParseTabular reads an uploaded trade report into column-name→value rows.
// Broker exports vary in column count per line, so no fixed record length is
// enforced. Some MetaTrader 5 exports prepend a one-cell banner line before the
// header row; that line is skipped. Fully empty rows are dropped.
func ParseTabular(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("trade report file is empty")
	}

	// MT5 prepends a "Posições"/"Positions" banner above the real header.
	if len(records) > 1 && len(records[0]) > 0 && strings.Contains(strings.ToLower(records[0][0]), "posi") {
		records = records[1:]
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []map[string]string
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		empty := true
		for i, value := range record {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			row[headers[i]] = value
			if strings.TrimSpace(value) != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}

	return rows, nil
}
