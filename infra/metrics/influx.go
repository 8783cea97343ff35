package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/truckhub/core/metrics"
	"github.com/kilianp07/truckhub/core/model"
	"github.com/kilianp07/truckhub/infra/logger"
)

// InfluxConfig holds the connection settings of the Influx sink.
type InfluxConfig struct {
	URL       string        `json:"url"`
	Token     string        `json:"token"`
	Org       string        `json:"org"`
	Bucket    string        `json:"bucket"`
	Timeout   time.Duration `json:"timeout"`
	BatchSize int           `json:"batch_size"`
}

func (c *InfluxConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5000
	}
}

// InfluxSink writes run results and load profiles to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	cfg      InfluxConfig
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. Load profile points are
// timestamped from the simulation epoch.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	cfg.setDefaults()
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cfg:      cfg,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the instance and returns a NopSink if the
// health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.cfg.Timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordUnit writes one unit_result point.
func (s *InfluxSink) RecordUnit(rec coremetrics.UnitRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("unit_result").
		AddTag("scenario", rec.Key.Scenario).
		AddTag("strategy", rec.Key.Strategy).
		AddTag("week", strconv.Itoa(rec.Key.Week)).
		AddTag("outcome", rec.Outcome).
		AddTag("run_id", rec.RunID).
		AddField("served", rec.Served).
		AddField("fully_charged", rec.FullyCharged).
		AddField("quota", round3(rec.Quota)).
		AddField("energy_kwh", round3(rec.EnergyKWh)).
		AddField("site_budget_kw", round3(rec.SiteBudgetKW)).
		AddField("solve_ms", rec.SolveTime.Milliseconds()).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSizing writes one sizing point.
func (s *InfluxSink) RecordSizing(rec coremetrics.SizingRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("sizing").
		AddTag("scenario", rec.Scenario).
		AddTag("class", rec.Class.String()).
		AddTag("run_id", rec.RunID).
		AddField("stations", rec.Stations).
		AddField("quota", round3(rec.Quota)).
		AddField("target", round3(rec.Target)).
		AddField("converged", rec.Converged).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordLoadProfile writes the profile in batches of cfg.BatchSize points.
func (s *InfluxSink) RecordLoadProfile(points []coremetrics.LoadPoint) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout*time.Duration(1+len(points)/s.cfg.BatchSize))
	defer cancel()
	batch := make([]*write.Point, 0, s.cfg.BatchSize)
	for _, lp := range points {
		p := write.NewPointWithMeasurement("load_profile").
			AddTag("scenario", lp.Scenario).
			AddTag("strategy", lp.Strategy).
			AddField("power_kw", round3(lp.PowerKW)).
			AddField("site_cap_kw", round3(lp.SiteCapKW))
		for _, c := range model.Classes {
			if v, ok := lp.ClassKW[c]; ok {
				p.AddField("power_"+strings.ToLower(c.String())+"_kw", round3(v))
			}
		}
		batch = append(batch, p.SetTime(model.StepTime(lp.Step)))
		if len(batch) == s.cfg.BatchSize {
			if err := s.writeAPI.WritePoint(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, batch...)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
