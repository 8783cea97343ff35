// Package export writes aggregated results as semicolon separated tables or
// JSON documents.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/kilianp07/truckhub/core/aggregate"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/infra/tabular"
)

// Formats.
const (
	CSV  = "csv"
	JSON = "json"
)

// WriteJSON writes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteProfileCSV writes the load profile with one power column per station class.
func WriteProfileCSV(w io.Writer, rows []aggregate.ProfileRow) error {
	cw := tabular.NewWriter(w)
	head := []string{"scenario", "strategy", "step", "time", "week", "power_kw"}
	for _, c := range model.Classes {
		head = append(head, "power_"+c.String()+"_kw")
	}
	head = append(head, "site_cap_kw", "max_deliverable_kw", "quota", "day_ahead_eur", "intraday_eur")
	if err := cw.Write(head); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Scenario,
			r.Strategy,
			strconv.Itoa(r.Step),
			model.StepTime(r.Step).Format("2006-01-02 15:04"),
			strconv.Itoa(r.Week),
			tabular.FormatFloat(r.PowerKW, 3),
		}
		for _, c := range model.Classes {
			rec = append(rec, tabular.FormatFloat(r.ClassKW[c], 3))
		}
		rec = append(rec,
			tabular.FormatFloat(r.SiteCapKW, 3),
			tabular.FormatFloat(r.MaxDeliverableKW, 3),
			tabular.FormatFloat(r.Quota, 4),
			tabular.FormatFloat(r.DayAheadEUR, 4),
			tabular.FormatFloat(r.IntradayEUR, 4),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLedgerCSV writes one row per session and step. Terminal rows carry an
// empty power.
func WriteLedgerCSV(w io.Writer, rows []aggregate.LedgerRow) error {
	cw := tabular.NewWriter(w)
	head := []string{"scenario", "strategy", "week", "session_id", "class", "step", "power_kw", "p_plus_kw", "p_minus_kw", "soc", "max_power_kw", "cost_eur"}
	if err := cw.Write(head); err != nil {
		return err
	}
	for _, r := range rows {
		power, plus, minus, maxP := "", "", "", ""
		if !r.Terminal {
			power = tabular.FormatFloat(r.PowerKW, 3)
			plus = tabular.FormatFloat(r.ChargeKW, 3)
			minus = tabular.FormatFloat(r.DischargeKW, 3)
			maxP = tabular.FormatFloat(r.MaxPowerKW, 3)
		}
		rec := []string{
			r.Scenario,
			r.Strategy,
			strconv.Itoa(r.Week),
			r.SessionID,
			r.Class.String(),
			strconv.Itoa(r.Step),
			power,
			plus,
			minus,
			tabular.FormatFloat(r.SoC, 6),
			maxP,
			tabular.FormatFloat(r.CostEUR, 4),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Writer saves tables under Dir in every listed format.
type Writer struct {
	Dir     string
	Formats []string
}

// Profile saves rows as <name>.csv and/or <name>.json.
func (x Writer) Profile(name string, rows []aggregate.ProfileRow) ([]string, error) {
	return x.save(name, rows, func(w io.Writer) error { return WriteProfileCSV(w, rows) })
}

// Ledger saves rows as <name>.csv and/or <name>.json.
func (x Writer) Ledger(name string, rows []aggregate.LedgerRow) ([]string, error) {
	return x.save(name, rows, func(w io.Writer) error { return WriteLedgerCSV(w, rows) })
}

// Document saves v as <name>.json regardless of the formats.
func (x Writer) Document(name string, v any) (string, error) {
	path := filepath.Join(x.Dir, name+".json")
	return path, tabular.WriteFile(path, func(w io.Writer) error { return WriteJSON(w, v) })
}

func (x Writer) save(name string, v any, csv func(io.Writer) error) ([]string, error) {
	var paths []string
	for _, f := range x.Formats {
		path := filepath.Join(x.Dir, name+"."+f)
		var err error
		switch f {
		case CSV:
			err = tabular.WriteFile(path, csv)
		case JSON:
			err = tabular.WriteFile(path, func(w io.Writer) error { return WriteJSON(w, v) })
		default:
			err = fmt.Errorf("export: unknown format %q", f)
		}
		if err != nil {
			return paths, fmt.Errorf("export %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
