package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	RefreshRuns     *prometheus.CounterVec
	RefreshDuration *prometheus.GaugeVec
	LastRefreshUnix *prometheus.GaugeVec
	RowsParsed      prometheus.Counter
	RowsDropped     prometheus.Counter
	PriceListMisses prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scrapview_refresh_runs_total"}, []string{"family", "result"})
	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "scrapview_refresh_duration_seconds"}, []string{"family"})
	last := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "scrapview_last_refresh_timestamp_seconds"}, []string{"family"})
	parsed := prometheus.NewCounter(prometheus.CounterOpts{Name: "scrapview_rows_parsed_total"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "scrapview_rows_dropped_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "scrapview_price_list_unavailable_total"})

	r.MustRegister(runs, duration, last, parsed, dropped, misses)
	return &Registry{
		reg:             r,
		RefreshRuns:     runs,
		RefreshDuration: duration,
		LastRefreshUnix: last,
		RowsParsed:      parsed,
		RowsDropped:     dropped,
		PriceListMisses: misses,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
