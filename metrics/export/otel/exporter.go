package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() shelfauth.MetricsSnapshot
	AuditDropped() uint64
}

// series is one engine counter reported as an attribute value of its group.
type series struct {
	id    shelfauth.MetricID
	value string
}

// counterGroup folds engine counters that partition one event stream into a
// single instrument keyed by attr.
type counterGroup struct {
	name   string
	help   string
	attr   string
	series []series
}

var counterGroups = []counterGroup{
	{
		name: "shelfauth.login",
		help: "Login attempts by outcome.",
		attr: "outcome",
		series: []series{
			{shelfauth.MetricLoginSuccess, "ok"},
			{shelfauth.MetricLoginFailure, "rejected"},
		},
	},
	{
		name: "shelfauth.login.rejections",
		help: "Rejected logins with a dedicated reason.",
		attr: "reason",
		series: []series{
			{shelfauth.MetricLoginRateLimited, "rate_limited"},
			{shelfauth.MetricLoginAudienceMismatch, "audience_mismatch"},
		},
	},
	{
		name: "shelfauth.refresh",
		help: "Refresh rotations by outcome.",
		attr: "outcome",
		series: []series{
			{shelfauth.MetricRefreshSuccess, "ok"},
			{shelfauth.MetricRefreshFailure, "rejected"},
		},
	},
	{
		name: "shelfauth.session",
		help: "Session lifecycle events.",
		attr: "event",
		series: []series{
			{shelfauth.MetricSessionCreated, "created"},
			{shelfauth.MetricSessionIssueFailure, "issue_failed"},
			{shelfauth.MetricLogout, "logout"},
		},
	},
	{
		name: "shelfauth.authenticate",
		help: "Access-token checks by outcome.",
		attr: "outcome",
		series: []series{
			{shelfauth.MetricAuthenticateSuccess, "ok"},
			{shelfauth.MetricAuthenticateFailure, "rejected"},
		},
	},
	{
		name: "shelfauth.cache.lookups",
		help: "Catalog cache lookups by result.",
		attr: "result",
		series: []series{
			{shelfauth.MetricCacheHit, "hit"},
			{shelfauth.MetricCacheMiss, "miss"},
		},
	},
	{
		name: "shelfauth.cache.errors",
		help: "Cache errors absorbed without failing the request.",
		attr: "kind",
		series: []series{
			{shelfauth.MetricCacheComputeFailure, "compute"},
			{shelfauth.MetricCacheStoreFailure, "store"},
		},
	},
	{
		name: "shelfauth.catalog.upstream_failures",
		help: "Catalog upstream failures absorbed as empty or not-found results.",
		attr: "op",
		series: []series{
			{shelfauth.MetricCatalogSearchFailure, "search"},
			{shelfauth.MetricCatalogBookFailure, "book"},
		},
	},
}

const (
	latencyName  = "shelfauth.authenticate.latency"
	auditDropped = "shelfauth.audit.dropped"
)

type observedSeries struct {
	id   shelfauth.MetricID
	opts metric.ObserveOption
}

type observedGroup struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

// Exporter publishes engine metrics as observable instruments. Counters that
// split one event stream share an instrument and differ by attribute; the
// authenticate latency histogram becomes one cumulative gauge keyed by "le".
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	groups       []observedGroup
	buckets      metric.Int64ObservableGauge
	bucketOpts   []metric.ObserveOption
	count        metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter that read from engine.
func NewExporter(meter metric.Meter, engine *shelfauth.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source: source,
		groups: make([]observedGroup, 0, len(counterGroups)),
	}
	observables := make([]metric.Observable, 0, len(counterGroups)+3)

	for _, g := range counterGroups {
		ins, err := meter.Int64ObservableCounter(g.name, metric.WithDescription(g.help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", g.name, err)
		}
		og := observedGroup{instrument: ins, series: make([]observedSeries, 0, len(g.series))}
		for _, s := range g.series {
			og.series = append(og.series, observedSeries{
				id:   s.id,
				opts: metric.WithAttributes(attribute.String(g.attr, s.value)),
			})
		}
		e.groups = append(e.groups, og)
		observables = append(observables, ins)
	}

	buckets, err := meter.Int64ObservableGauge(latencyName+".buckets",
		metric.WithDescription("Cumulative authenticate latency samples at or below le seconds."))
	if err != nil {
		return nil, fmt.Errorf("create latency bucket gauge: %w", err)
	}
	e.buckets = buckets
	for _, bound := range internaldefs.HistogramUpperBounds {
		le := strconv.FormatFloat(bound, 'g', -1, 64)
		e.bucketOpts = append(e.bucketOpts, metric.WithAttributes(attribute.String("le", le)))
	}
	e.bucketOpts = append(e.bucketOpts, metric.WithAttributes(attribute.String("le", "+Inf")))

	count, err := meter.Int64ObservableGauge(latencyName+".count",
		metric.WithDescription("Authenticate latency samples."))
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	e.count = count

	dropped, err := meter.Int64ObservableCounter(auditDropped,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, buckets, count, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, g := range e.groups {
		for _, s := range g.series {
			o.ObserveInt64(g.instrument, int64(snapshot.Counters[s.id]), s.opts)
		}
	}

	cumulative := internaldefs.CumulativeBuckets(
		internaldefs.NormalizeBuckets(snapshot.Histograms[shelfauth.MetricAuthenticateLatency]),
	)
	for i, opts := range e.bucketOpts {
		o.ObserveInt64(e.buckets, int64(cumulative[i]), opts)
	}
	o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
