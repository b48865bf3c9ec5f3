package parsers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecognizedFormat means the report's column names match no known broker
// export signature.
var ErrUnrecognizedFormat = errors.New("unrecognized trade report format")

// PlatformFormat maps one broker export format's raw column names to the
// canonical fields the apportionment engine needs.
type PlatformFormat struct {
	Name             string
	CloseTimeColumn  string
	ResultColumn     string
	CommissionColumn string
	SwapColumn       string
	SymbolColumn     string

	// signature is the minimal set of normalized column names that identifies
	// this format. Signatures are mutually exclusive in practice, but the list
	// below is still matched in order.
	signature []string
}

// knownPlatforms lists every supported export format. The two Portuguese-locale
// MetaTrader 5 variants come first: the positions report shares the "position"
// column with the English-locale export and must win when "ativo" is present.
var knownPlatforms = []PlatformFormat{
	{
		Name:             "MetaTrader 5 (Posições)",
		CloseTimeColumn:  "Horário",
		ResultColumn:     "Lucro",
		CommissionColumn: "Comissão",
		SwapColumn:       "Swap",
		SymbolColumn:     "Ativo",
		signature:        []string{"position", "ativo", "horário", "lucro"},
	},
	{
		Name:             "MetaTrader 5 (Negócios)",
		CloseTimeColumn:  "Datade  Fechamento", // double space as exported
		ResultColumn:     "Resultado",
		CommissionColumn: "Comissão",
		SwapColumn:       "Swap",
		SymbolColumn:     "Ativo",
		signature:        []string{"n. do trade", "datade fechamento"},
	},
	{
		Name:             "MetaTrader 5 (English)",
		CloseTimeColumn:  "Time",
		ResultColumn:     "Profit",
		CommissionColumn: "Commission",
		SwapColumn:       "Swap",
		SymbolColumn:     "Symbol",
		signature:        []string{"position", "type", "deal"},
	},
	{
		Name:             "MetaTrader 4",
		CloseTimeColumn:  "Close Time",
		ResultColumn:     "Profit",
		CommissionColumn: "Commission",
		SwapColumn:       "Swap",
		SymbolColumn:     "Item",
		signature:        []string{"ticket", "open time", "close time"},
	},
	{
		Name:             "CTrader",
		CloseTimeColumn:  "Close Time",
		ResultColumn:     "Net Profit",
		CommissionColumn: "Commissions",
		SwapColumn:       "Swap",
		SymbolColumn:     "Symbol",
		signature:        []string{"tradeid", "direction", "close time"},
	},
}

// NormalizeColumn canonicalizes a raw column name for signature matching:
// lowercased, trimmed, internal whitespace collapsed to single spaces.
func NormalizeColumn(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// SlugifyColumn turns a raw column name into a stable key for unmapped fields:
// lowercased, trimmed, whitespace replaced with underscores.
func SlugifyColumn(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// DetectPlatform classifies a report by its column names and returns the column
// mapping for the first matching signature.
func DetectPlatform(columns []string) (*PlatformFormat, error) {
	normalized := make(map[string]bool, len(columns))
	for _, c := range columns {
		normalized[NormalizeColumn(c)] = true
	}

	for i := range knownPlatforms {
		format := &knownPlatforms[i]
		matches := true
		for _, required := range format.signature {
			if !normalized[required] {
				matches = false
				break
			}
		}
		if matches {
			return format, nil
		}
	}

	return nil, fmt.Errorf("%w: no known signature matches columns %v", ErrUnrecognizedFormat, columns)
}
