// Package app wires configuration, storage, metrics and events around the
// scenario runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/truckhub/app/plugins"
	"github.com/kilianp07/truckhub/config"
	"github.com/kilianp07/truckhub/core/aggregate"
	"github.com/kilianp07/truckhub/core/capacity"
	"github.com/kilianp07/truckhub/core/dispatch"
	"github.com/kilianp07/truckhub/core/events"
	"github.com/kilianp07/truckhub/core/factory"
	"github.com/kilianp07/truckhub/core/kpi"
	coremetrics "github.com/kilianp07/truckhub/core/metrics"
	"github.com/kilianp07/truckhub/core/model"
	coremon "github.com/kilianp07/truckhub/core/monitoring"
	coremqtt "github.com/kilianp07/truckhub/core/mqtt"
	"github.com/kilianp07/truckhub/core/results"
	"github.com/kilianp07/truckhub/core/runner"
	"github.com/kilianp07/truckhub/core/scenario"
	"github.com/kilianp07/truckhub/core/series"
	"github.com/kilianp07/truckhub/core/strategy"
	"github.com/kilianp07/truckhub/core/synth"
	"github.com/kilianp07/truckhub/infra/logger"
	"github.com/kilianp07/truckhub/infra/metrics"
	"github.com/kilianp07/truckhub/infra/monitoring"
	"github.com/kilianp07/truckhub/infra/mqtt"
	"github.com/kilianp07/truckhub/infra/tabular"
	"github.com/kilianp07/truckhub/internal/eventbus"
	"github.com/kilianp07/truckhub/pkg/export"
)

var (
	// ErrNoStations is returned by Dispatch when no station file is configured.
	ErrNoStations = errors.New("data.stations is required to dispatch without sizing")
	// ErrAmbiguousRun is returned by KPI when the store holds several runs of a
	// scenario and none was selected.
	ErrAmbiguousRun = errors.New("several runs stored, select one")
)

// Service orchestrates one invocation of the tool.
type Service struct {
	cfg    *config.Config
	log    logger.Logger
	store  results.Store
	sink   coremetrics.Sink
	bus    *eventbus.Bus[events.Event]
	pub    coremqtt.Publisher
	mon    coremon.Monitor
	runner *runner.Runner
	out    export.Writer
	series map[string]*series.Series

	cancel context.CancelFunc
	done   []<-chan struct{}
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher replaces the MQTT publisher built from the events section.
func WithPublisher(p coremqtt.Publisher) Option { return func(s *Service) { s.pub = p } }

// WithMonitor replaces the Sentry monitor built from the monitoring section.
func WithMonitor(m coremon.Monitor) Option { return func(s *Service) { s.mon = m } }

// WithOptimizer replaces the dispatch optimizer.
func WithOptimizer(o runner.Optimizer) Option {
	return func(s *Service) {
		s.runner = runner.New(s.cfg.Runner, o, logger.New("runner"),
			runner.WithStore(s.store), runner.WithBus(s.bus), runner.WithCapacity(s.cfg.Capacity))
	}
}

// New creates a Service from the configuration. Background collectors run
// until Close.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	logg := logger.New("service")
	store, err := plugins.NewStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("result store: %w", err)
	}
	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		cfg:    cfg,
		log:    logg,
		store:  store,
		sink:   sink,
		bus:    eventbus.New[events.Event](eventbus.WithBuffer(cfg.Events.Buffer)),
		out:    export.Writer{Dir: cfg.Output.Dir, Formats: cfg.Output.Formats},
		cancel: cancel,
	}
	opt := dispatch.NewOptimizer(cfg.Dispatch, logger.New("dispatch"), dispatch.WithEnvelope(cfg.Grid.Envelope))
	s.runner = runner.New(cfg.Runner, opt, logger.New("runner"),
		runner.WithStore(store), runner.WithBus(s.bus), runner.WithCapacity(cfg.Capacity))
	for _, o := range opts {
		o(s)
	}

	if err := s.startPromServers(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if s.pub == nil && cfg.Events.MQTT.Broker != "" {
		pub, err := mqtt.NewPahoPublisher(cfg.Events.MQTT)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		s.pub = pub
	}
	if s.mon == nil {
		if s.mon, err = monitoring.NewSentryMonitor(cfg.Monitoring); err != nil {
			s.Close()
			return nil, fmt.Errorf("sentry: %w", err)
		}
	}
	s.done = append(s.done, metrics.StartEventCollector(ctx, s.bus, sink, logger.New("metrics")))
	s.done = append(s.done, monitoring.StartErrorReporter(ctx, s.bus, s.mon))
	if s.pub != nil {
		s.done = append(s.done, mqtt.StartBridge(ctx, s.bus, s.pub, logger.New("mqtt")))
	}
	return s, nil
}

func (s *Service) startPromServers(ctx context.Context) error {
	for _, m := range s.cfg.Metrics.Sinks {
		if m.Type != "prometheus" {
			continue
		}
		var pc metrics.PromServerConfig
		if err := factory.Decode(m.Conf, &pc); err != nil {
			return fmt.Errorf("prometheus conf: %w", err)
		}
		if pc.Addr == "" {
			continue
		}
		addr, err := metrics.StartPromServer(ctx, pc.Addr, nil, s.log)
		if err != nil {
			return fmt.Errorf("prom server: %w", err)
		}
		s.log.Infow("prometheus metrics exposed", logger.Fields{"addr": addr})
	}
	return nil
}

// Close drains the event bus and releases every resource.
func (s *Service) Close() error {
	s.bus.Close()
	for _, d := range s.done {
		<-d
	}
	s.cancel()
	if s.pub != nil {
		s.pub.Disconnect()
	}
	if s.mon != nil {
		s.mon.Flush(2 * time.Second)
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if dropped := s.bus.Dropped(); dropped > 0 {
		s.log.Warnw("events dropped by slow subscribers", logger.Fields{"count": dropped})
	}
	return s.store.Close()
}

// Generate draws a synthetic population, assigns station classes and saves
// it to data.sessions.
func (s *Service) Generate(ctx context.Context) ([]model.Session, error) {
	sessions, err := synth.Generate(s.cfg.Synth)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unmet := synth.AssignClasses(sessions, s.cfg.Grid.Envelope, logger.New("synth"))
	if err := tabular.SaveSessions(s.cfg.Data.Sessions, sessions); err != nil {
		return nil, fmt.Errorf("save sessions: %w", err)
	}
	fields := logger.Fields{"sessions": len(sessions), "path": s.cfg.Data.Sessions, "unmet": unmet}
	for c, share := range synth.ClassShares(sessions) {
		fields["share_"+c.String()] = share
	}
	s.log.Infow("population generated", fields)
	return sessions, nil
}

// Sizing is the station count of one scenario.
type Sizing struct {
	Scenario string                         `json:"scenario"`
	Classes  []capacity.ClassResult         `json:"classes"`
	Counts   map[model.StationClass]int     `json:"counts"`
	Groups   []GroupRow                     `json:"groups"`
	Files    []string                       `json:"files"`
	Stations map[model.StationClass]float64 `json:"station_cap_kw,omitempty"`
}

// GroupRow is the labelling outcome of one (class, week).
type GroupRow struct {
	Class model.StationClass `json:"class"`
	Week  int                `json:"week"`
	capacity.GroupStats
}

// Size sizes and labels every configured scenario and saves the station
// counts and the labelled sessions.
func (s *Service) Size(ctx context.Context) ([]Sizing, error) {
	resolved, sessions, err := s.inputs()
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	var out []Sizing
	for _, r := range resolved {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		name := r.Scenario.String()
		prepared, err := runner.Prepare(r.Scenario, sessions)
		if err != nil {
			return out, fmt.Errorf("scenario %s: %w", name, err)
		}
		classes, counts, err := s.runner.Size(runID, r.Scenario, prepared)
		if err != nil {
			return out, fmt.Errorf("scenario %s: %w", name, err)
		}
		pool := r.Scenario.Pool(counts)
		labelled, groups := capacity.Label(prepared, pool, s.cfg.Capacity.Changeover())
		sz := Sizing{Scenario: name, Classes: classes, Counts: counts, Groups: groupRows(groups)}
		sz.Stations = make(map[model.StationClass]float64, len(pool.Specs))
		for c, spec := range pool.Specs {
			sz.Stations[c] = spec.PowerCapKW
		}
		stations := s.path("stations_"+name, "csv")
		if err := tabular.SaveCounts(stations, counts); err != nil {
			return out, err
		}
		labelledPath := s.path("sessions_"+name, "csv")
		if err := tabular.SaveSessions(labelledPath, labelled); err != nil {
			return out, err
		}
		sz.Files = []string{stations, labelledPath}
		doc, err := s.out.Document("sizing_"+name, sz)
		if err != nil {
			return out, err
		}
		sz.Files = append(sz.Files, doc)
		out = append(out, sz)
	}
	return out, nil
}

func groupRows(groups map[capacity.GroupKey]capacity.GroupStats) []GroupRow {
	out := make([]GroupRow, 0, len(groups))
	for k, g := range groups {
		out = append(out, GroupRow{Class: k.Class, Week: k.Week, GroupStats: g})
	}
	slices.SortFunc(out, func(a, b GroupRow) int {
		if a.Class != b.Class {
			return int(a.Class) - int(b.Class)
		}
		return a.Week - b.Week
	})
	return out
}

// Summary is the outcome of one dispatched scenario.
type Summary struct {
	RunID      string                      `json:"run_id"`
	Scenario   string                      `json:"scenario"`
	Counts     map[model.StationClass]int  `json:"counts"`
	Solved     int                         `json:"solved"`
	Failures   []FailureRow                `json:"failures,omitempty"`
	Totals     map[string]aggregate.Totals `json:"totals"`
	Indicators map[string]float64          `json:"indicators,omitempty"`
	Files      []string                    `json:"files"`
	// KPI is saved to its own document.
	KPI *kpi.Report `json:"-"`
}

// FailureRow is a unit without an optimal dispatch.
type FailureRow struct {
	model.UnitKey
	Outcome string `json:"outcome"`
	Error   string `json:"error"`
}

// Dispatch runs every scenario on the station counts of data.stations.
func (s *Service) Dispatch(ctx context.Context) ([]Summary, error) {
	if s.cfg.Data.Stations == "" {
		return nil, ErrNoStations
	}
	return s.run(ctx, false)
}

// Run sizes (unless data.stations is set), dispatches, aggregates and
// evaluates the KPIs of every scenario.
func (s *Service) Run(ctx context.Context) ([]Summary, error) {
	return s.run(ctx, true)
}

func (s *Service) run(ctx context.Context, withKPI bool) ([]Summary, error) {
	resolved, sessions, err := s.inputs()
	if err != nil {
		return nil, err
	}
	var counts map[model.StationClass]int
	if s.cfg.Data.Stations != "" {
		if counts, err = tabular.LoadCounts(s.cfg.Data.Stations); err != nil {
			return nil, fmt.Errorf("stations: %w", err)
		}
	}
	if err := s.loadSeries(); err != nil {
		return nil, err
	}
	prices := aggregate.Prices{DayAhead: s.series[strategy.DayAhead], Intraday: s.series[strategy.Intraday]}

	runID := uuid.NewString()
	var out []Summary
	for _, r := range resolved {
		strats, err := strategy.NewAll(r.Strategies, strategy.Options{
			Series:       s.series,
			PriceWeight:  s.cfg.Dispatch.Strategy.PriceWeight,
			EnergyWeight: s.cfg.Dispatch.Strategy.EnergyWeight,
		})
		if err != nil {
			return out, fmt.Errorf("scenario %s: %w", r.Scenario.String(), err)
		}
		rep, err := s.runner.Run(ctx, runner.Input{
			RunID:      runID,
			Scenario:   r.Scenario,
			Sessions:   sessions,
			Counts:     counts,
			Strategies: strats,
		})
		if err != nil {
			return out, err
		}
		sum, err := s.summarize(rep, prices, withKPI)
		if err != nil {
			return out, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) summarize(rep *runner.Report, prices aggregate.Prices, withKPI bool) (Summary, error) {
	sum := Summary{
		RunID:    rep.RunID,
		Scenario: rep.Scenario,
		Counts:   rep.Counts,
		Solved:   len(rep.Units),
		Totals:   make(map[string]aggregate.Totals),
	}
	for _, f := range rep.Failures {
		sum.Failures = append(sum.Failures, FailureRow{UnitKey: f.Key, Outcome: f.Outcome, Error: f.Err.Error()})
	}
	profile := aggregate.LoadProfile(rep.Units, prices)
	files, err := s.publishUnits(&sum, rep.Units, profile)
	if err != nil {
		return sum, err
	}
	sum.Files = files
	if withKPI {
		k, err := kpi.Compute(sum.Scenario, profile, ServedTrucks(rep.Units))
		if err != nil {
			s.log.Warnw("kpi skipped", logger.Fields{"scenario": sum.Scenario, "error": err.Error()})
		} else {
			sum.KPI = &k
			sum.Indicators = Indicators(k)
			doc, err := s.out.Document("kpi_"+sum.Scenario, k)
			if err != nil {
				return sum, err
			}
			sum.Files = append(sum.Files, doc)
		}
	}
	doc, err := s.out.Document("summary_"+rep.Scenario, sum)
	if err != nil {
		return sum, err
	}
	sum.Files = append(sum.Files, doc)
	return sum, nil
}

// publishUnits exports the load profile and ledger of units and forwards the
// profile to time series sinks.
func (s *Service) publishUnits(sum *Summary, units []*model.UnitResult, profile []aggregate.ProfileRow) ([]string, error) {
	for _, u := range units {
		if _, ok := sum.Totals[u.Key.Strategy]; !ok {
			sum.Totals[u.Key.Strategy] = aggregate.Summarize(profile, u.Key.Strategy)
		}
	}
	var files []string
	paths, err := s.out.Profile("profile_"+sum.Scenario, profile)
	if err != nil {
		return files, err
	}
	files = append(files, paths...)
	paths, err = s.out.Ledger("ledger_"+sum.Scenario, aggregate.Ledger(units))
	if err != nil {
		return files, err
	}
	files = append(files, paths...)

	if rec, ok := s.sink.(coremetrics.LoadProfileRecorder); ok && s.cfg.Metrics.LoadProfile {
		if err := rec.RecordLoadProfile(loadPoints(profile)); err != nil {
			s.log.Warnw("load profile export failed", logger.Fields{"scenario": sum.Scenario, "error": err.Error()})
		}
	}
	return files, nil
}

// KPI recomputes the indicators of every configured scenario from stored
// units. runID selects the run when the store holds several.
func (s *Service) KPI(ctx context.Context, runID string) ([]kpi.Report, error) {
	resolved, err := s.cfg.Scenario.Resolve(s.cfg.Data)
	if err != nil {
		return nil, err
	}
	if err := s.loadSeries(); err != nil {
		return nil, err
	}
	prices := aggregate.Prices{DayAhead: s.series[strategy.DayAhead], Intraday: s.series[strategy.Intraday]}
	var out []kpi.Report
	for _, r := range resolved {
		name := r.Scenario.String()
		units, err := s.store.Units(ctx, results.Query{RunID: runID, Scenario: name})
		if err != nil {
			return out, err
		}
		if runs := runIDs(units); len(runs) > 1 {
			return out, fmt.Errorf("scenario %s: %w: %v", name, ErrAmbiguousRun, runs)
		}
		rep, err := kpi.Compute(name, aggregate.LoadProfile(units, prices), ServedTrucks(units))
		if err != nil {
			return out, fmt.Errorf("scenario %s: %w", name, err)
		}
		if _, err := s.out.Document("kpi_"+name, rep); err != nil {
			return out, err
		}
		out = append(out, rep)
	}
	return out, nil
}

// Indicators returns the scalar KPIs of r.
func Indicators(r kpi.Report) map[string]float64 {
	return map[string]float64{"efi": r.EFI, "mpfi": r.MPFI, "apfi": r.APFI}
}

func runIDs(units []*model.UnitResult) []string {
	seen := make(map[string]struct{})
	for _, u := range units {
		seen[u.RunID] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// ServedTrucks counts the distinct sessions per class dispatched under the
// p_max strategy.
func ServedTrucks(units []*model.UnitResult) map[model.StationClass]int {
	seen := make(map[string]model.StationClass)
	for _, u := range units {
		if u.Key.Strategy != strategy.PMax {
			continue
		}
		for _, sr := range u.Sessions {
			seen[sr.SessionID] = sr.Class
		}
	}
	out := make(map[model.StationClass]int, len(model.Classes))
	for _, c := range seen {
		out[c]++
	}
	return out
}

func loadPoints(rows []aggregate.ProfileRow) []coremetrics.LoadPoint {
	out := make([]coremetrics.LoadPoint, len(rows))
	for i, r := range rows {
		out[i] = coremetrics.LoadPoint{
			Scenario:  r.Scenario,
			Strategy:  r.Strategy,
			Step:      r.Step,
			PowerKW:   r.PowerKW,
			SiteCapKW: r.SiteCapKW,
			ClassKW:   r.ClassKW,
		}
	}
	return out
}

// inputs resolves the scenarios and reads the session file.
func (s *Service) inputs() ([]scenario.Resolved, []model.Session, error) {
	resolved, err := s.cfg.Scenario.Resolve(s.cfg.Data)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := tabular.LoadSessions(s.cfg.Data.Sessions)
	if err != nil {
		return nil, nil, fmt.Errorf("sessions: %w", err)
	}
	return resolved, sessions, nil
}

// loadSeries reads every configured series once. A length mismatch aborts.
func (s *Service) loadSeries() error {
	if s.series != nil {
		return nil
	}
	loaded := make(map[string]*series.Series)
	for key, src := range s.cfg.Data.Sources() {
		ser, err := tabular.LoadSeries(src.Path, key, src.Column, s.cfg.Data.SeriesSteps)
		if err != nil {
			return fmt.Errorf("series %s: %w", key, err)
		}
		loaded[key] = ser
	}
	s.series = loaded
	return nil
}

func (s *Service) path(name, ext string) string {
	return filepath.Join(s.out.Dir, name+"."+ext)
}
