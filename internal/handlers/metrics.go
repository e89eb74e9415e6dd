package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the Prometheus registry. Each refresh hook runs
// before the scrape so gauges that are expensive to keep current, such as
// database file sizes, are sampled on demand.
func MetricsHandler(refresh ...func()) http.Handler {
	prom := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, fn := range refresh {
			fn()
		}
		prom.ServeHTTP(w, r)
	})
}
