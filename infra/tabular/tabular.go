// Package tabular reads and writes the semicolon separated, decimal comma CSV
// dialect used for all hub input and output tables.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Separator is the field delimiter.
const Separator = ';'

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrBadValue is returned for cells that cannot be parsed.
	ErrBadValue = errors.New("bad cell value")
)

// NewReader returns a csv.Reader for the dialect.
func NewReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return cr
}

// NewWriter returns a csv.Writer for the dialect.
func NewWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	return cw
}

// ParseFloat accepts both decimal comma and decimal point.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty number", ErrBadValue)
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadValue, s)
	}
	return v, nil
}

// FormatFloat renders v with a decimal comma and at most prec decimals.
func FormatFloat(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return strings.Replace(s, ".", ",", 1)
}

// Header maps column names to indices. Lookups are case insensitive and try
// every alias in order.
type Header map[string]int

// NewHeader indexes a header record. A leading unnamed index column written by
// data frame tools is kept under the empty name.
func NewHeader(rec []string) Header {
	h := make(Header, len(rec))
	for i, name := range rec {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

// Index returns the column of the first alias present.
func (h Header) Index(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if i, ok := h[strings.ToLower(a)]; ok {
			return i, true
		}
	}
	return -1, false
}

// Require is Index that fails with ErrMissingColumn.
func (h Header) Require(aliases ...string) (int, error) {
	if i, ok := h.Index(aliases...); ok {
		return i, nil
	}
	return -1, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(aliases, " / "))
}

// cell returns rec[i] or "" when the record is short.
func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
