package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kilianp07/truckhub/core/series"
)

// ReadSeries reads one numeric column. An empty column name selects the last
// column, which is where exported price tables keep their values.
func ReadSeries(r io.Reader, name, column string) (*series.Series, error) {
	cr := NewReader(r)
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("series %s: header: %w", name, err)
	}
	idx := len(head) - 1
	if column != "" {
		if idx, err = NewHeader(head).Require(column); err != nil {
			return nil, fmt.Errorf("series %s: %w", name, err)
		}
	}
	var values []float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("series %s line %d: %w", name, line, err)
		}
		v, err := ParseFloat(cell(rec, idx))
		if err != nil {
			return nil, fmt.Errorf("series %s line %d: %w", name, line, err)
		}
		values = append(values, v)
	}
	return series.New(name, values), nil
}

// LoadSeries reads a series file and checks that it has expected values.
func LoadSeries(path, name, column string, expected int) (*series.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadSeries(f, name, column)
	if err != nil {
		return nil, err
	}
	if err := s.CheckLength(expected); err != nil {
		return nil, err
	}
	return s, nil
}
