package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kilianp07/truckhub/core/model"
)

var sessionColumns = struct {
	cluster, id, arrival, departure, duration, pause, class, capacity, maxPower, soc, target, served []string
}{
	cluster:   []string{"cluster"},
	id:        []string{"id", "lkw_id"},
	arrival:   []string{"arrival", "ankunftszeit_total"},
	departure: []string{"departure"},
	duration:  []string{"duration", "pausenlaenge"},
	pause:     []string{"pause", "pausentyp"},
	class:     []string{"class", "ladesäule", "ladesaeule"},
	capacity:  []string{"capacity_kwh", "kapazitaet"},
	maxPower:  []string{"max_power_kw", "max_leistung"},
	soc:       []string{"soc"},
	target:    []string{"soc_target"},
	served:    []string{"served"},
}

// ReadSessions parses a session table. The departure column may be replaced
// by a duration column in minutes. Class and served columns are optional.
func ReadSessions(r io.Reader) ([]model.Session, error) {
	cr := NewReader(r)
	rec, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("sessions: header: %w", err)
	}
	h := NewHeader(rec)
	c := sessionColumns
	var idx sessionIndex
	var errs []error
	must := func(dst *int, aliases []string) {
		var err error
		if *dst, err = h.Require(aliases...); err != nil {
			errs = append(errs, err)
		}
	}
	must(&idx.id, c.id)
	must(&idx.arrival, c.arrival)
	must(&idx.pause, c.pause)
	must(&idx.capacity, c.capacity)
	must(&idx.maxPower, c.maxPower)
	must(&idx.soc, c.soc)
	must(&idx.target, c.target)
	idx.cluster, _ = h.Index(c.cluster...)
	idx.class, _ = h.Index(c.class...)
	idx.served, _ = h.Index(c.served...)
	var hasDur bool
	idx.departure, idx.hasDeparture = h.Index(c.departure...)
	idx.duration, hasDur = h.Index(c.duration...)
	if !idx.hasDeparture && !hasDur {
		errs = append(errs, fmt.Errorf("%w: departure / duration", ErrMissingColumn))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}

	var out []model.Session
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("sessions line %d: %w", line, err)
		}
		s, err := idx.parse(rec)
		if err != nil {
			return nil, fmt.Errorf("sessions line %d: %w", line, err)
		}
		out = append(out, s)
	}
}

type sessionIndex struct {
	cluster, id, arrival, departure, duration, pause, class int
	capacity, maxPower, soc, target, served                 int
	hasDeparture                                            bool
}

func (ix sessionIndex) parse(rec []string) (model.Session, error) {
	var (
		s   model.Session
		err error
	)
	s.ID = cell(rec, ix.id)
	if v := cell(rec, ix.cluster); v != "" {
		if s.Cluster, err = atoi(v); err != nil {
			return s, err
		}
	}
	if s.Arrival, err = atoi(cell(rec, ix.arrival)); err != nil {
		return s, err
	}
	if ix.hasDeparture {
		if s.Departure, err = atoi(cell(rec, ix.departure)); err != nil {
			return s, err
		}
	} else {
		d, err := atoi(cell(rec, ix.duration))
		if err != nil {
			return s, err
		}
		s.Departure = s.Arrival + d
	}
	if s.Pause, err = model.ParsePauseType(cell(rec, ix.pause)); err != nil {
		return s, err
	}
	if v := cell(rec, ix.class); v != "" {
		if s.Class, err = model.ParseStationClass(v); err != nil {
			return s, err
		}
	}
	for _, f := range []struct {
		dst *float64
		col int
	}{{&s.CapacityKWh, ix.capacity}, {&s.MaxPowerKW, ix.maxPower}, {&s.SoCInitial, ix.soc}, {&s.SoCTarget, ix.target}} {
		if *f.dst, err = ParseFloat(cell(rec, f.col)); err != nil {
			return s, err
		}
	}
	if v := cell(rec, ix.served); v != "" {
		if s.Served, err = strconv.ParseBool(v); err != nil {
			return s, fmt.Errorf("%w: served %q", ErrBadValue, v)
		}
	}
	return s, s.Validate()
}

func atoi(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := ParseFloat(s)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("%w: integer %q", ErrBadValue, s)
		}
		return int(f), nil
	}
	return v, nil
}

// WriteSessions writes sessions with canonical headers.
func WriteSessions(w io.Writer, sessions []model.Session) error {
	cw := NewWriter(w)
	head := []string{"cluster", "id", "arrival", "departure", "pause", "class", "capacity_kwh", "max_power_kw", "soc", "soc_target", "served"}
	if err := cw.Write(head); err != nil {
		return err
	}
	for _, s := range sessions {
		rec := []string{
			strconv.Itoa(s.Cluster),
			s.ID,
			strconv.Itoa(s.Arrival),
			strconv.Itoa(s.Departure),
			s.Pause.String(),
			s.Class.String(),
			FormatFloat(s.CapacityKWh, 3),
			FormatFloat(s.MaxPowerKW, 3),
			FormatFloat(s.SoCInitial, 6),
			FormatFloat(s.SoCTarget, 6),
			strconv.FormatBool(s.Served),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadSessions reads a session file.
func LoadSessions(path string) ([]model.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSessions(f)
}

// SaveSessions writes a session file.
func SaveSessions(path string, sessions []model.Session) error {
	return writeFile(path, func(w io.Writer) error { return WriteSessions(w, sessions) })
}
