package sql

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector exports QueryStats as Prometheus metrics.
//
//	stats := sql.NewStatsDriver(drv)
//	prometheus.MustRegister(sql.NewStatsCollector("app", stats.QueryStats()))
type StatsCollector struct {
	stats *QueryStats

	queries   *prometheus.Desc
	execs     *prometheus.Desc
	duration  *prometheus.Desc
	slow      *prometheus.Desc
	errors    *prometheus.Desc
	commits   *prometheus.Desc
	rollbacks *prometheus.Desc
}

// NewStatsCollector returns a collector reading from stats. Metric names
// are prefixed with namespace.
func NewStatsCollector(namespace string, stats *QueryStats) *StatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db", name), help, nil, nil)
	}
	return &StatsCollector{
		stats:     stats,
		queries:   desc("queries_total", "Number of executed queries."),
		execs:     desc("execs_total", "Number of executed statements."),
		duration:  desc("duration_seconds_total", "Total time spent executing statements."),
		slow:      desc("slow_queries_total", "Number of statements above the slow threshold."),
		errors:    desc("errors_total", "Number of failed statements."),
		commits:   desc("commits_total", "Number of committed transactions."),
		rollbacks: desc("rollbacks_total", "Number of rolled back transactions."),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queries
	ch <- c.execs
	ch <- c.duration
	ch <- c.slow
	ch <- c.errors
	ch <- c.commits
	ch <- c.rollbacks
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Stats()
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	counter(c.queries, float64(s.TotalQueries))
	counter(c.execs, float64(s.TotalExecs))
	counter(c.duration, s.TotalDuration.Seconds())
	counter(c.slow, float64(s.SlowQueries))
	counter(c.errors, float64(s.Errors))
	counter(c.commits, float64(s.Commits))
	counter(c.rollbacks, float64(s.Rollbacks))
}

var _ prometheus.Collector = (*StatsCollector)(nil)
