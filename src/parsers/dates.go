package parsers

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedDate means a close-date value matched none of the supported date
// grammars.
var ErrMalformedDate = errors.New("malformed date")

// dateGrammar is one named close-date format. Broker exports disagree on date
// layout, so grammars are selected explicitly instead of branching on
// separator characters inline.
type dateGrammar struct {
	name    string
	detects func(string) bool
	layout  string
}

var closeDateGrammars = []dateGrammar{
	{name: "slash (DD/MM/YYYY)", detects: func(s string) bool { return strings.Contains(s, "/") }, layout: "02/01/2006"},
	{name: "dot (YYYY.MM.DD)", detects: func(s string) bool { return strings.Contains(s, ".") }, layout: "2006.01.02"},
	{name: "iso (YYYY-MM-DD)", detects: func(s string) bool { return strings.Contains(s, "-") }, layout: "2006-01-02"},
}

// ParseCloseDate parses a trade close timestamp into a UTC calendar date. The
// time-of-day portion, when present, is separated by whitespace and discarded.
func ParseCloseDate(value string) (time.Time, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("%w: empty close date", ErrMalformedDate)
	}
	datePart := fields[0]

	for _, grammar := range closeDateGrammars {
		if !grammar.detects(datePart) {
			continue
		}
		parsed, err := time.ParseInLocation(grammar.layout, datePart, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q does not parse as %s", ErrMalformedDate, value, grammar.name)
		}
		return parsed, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q matches no supported date grammar", ErrMalformedDate, value)
}
