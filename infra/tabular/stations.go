package tabular

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kilianp07/truckhub/core/model"
)

// ReadCounts reads a one-row station table with one column per class.
func ReadCounts(r io.Reader) (map[model.StationClass]int, error) {
	cr := NewReader(r)
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("stations: header: %w", err)
	}
	rec, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("stations: row: %w", err)
	}
	h := NewHeader(head)
	out := make(map[model.StationClass]int, len(model.Classes))
	for _, c := range model.Classes {
		i, err := h.Require(c.String())
		if err != nil {
			return nil, fmt.Errorf("stations: %w", err)
		}
		n, err := atoi(cell(rec, i))
		if err != nil {
			return nil, fmt.Errorf("stations %s: %w", c, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("stations %s: %w: negative count", c, ErrBadValue)
		}
		out[c] = n
	}
	return out, nil
}

// WriteCounts writes the station table.
func WriteCounts(w io.Writer, counts map[model.StationClass]int) error {
	cw := NewWriter(w)
	head := make([]string, len(model.Classes))
	row := make([]string, len(model.Classes))
	for i, c := range model.Classes {
		head[i] = c.String()
		row[i] = strconv.Itoa(counts[c])
	}
	if err := cw.Write(head); err != nil {
		return err
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// LoadCounts reads a station file.
func LoadCounts(path string) (map[model.StationClass]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCounts(f)
}

// SaveCounts writes a station file.
func SaveCounts(path string, counts map[model.StationClass]int) error {
	return writeFile(path, func(w io.Writer) error { return WriteCounts(w, counts) })
}

// writeFile writes through a temporary file in the target directory and
// renames it into place.
func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteFile exposes the atomic writer for other table producers.
func WriteFile(path string, write func(io.Writer) error) error { return writeFile(path, write) }
