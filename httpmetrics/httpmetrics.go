// Package httpmetrics counts and times the requests served by a handler.
package httpmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	keyRoute  = tag.MustNewKey("route")
	keyMethod = tag.MustNewKey("method")
	keyStatus = tag.MustNewKey("status")
)

// otherRoute labels requests for paths outside the known routes, keeping tag
// cardinality bounded.
const otherRoute = "other"

type Wrapper struct {
	requestCount     *stats.Int64Measure
	requestCountView *view.View

	latency     *stats.Float64Measure
	latencyView *view.View

	routes map[string]bool

	inner http.Handler
}

// New wraps inner.  routes lists the paths that get their own tag value.
func New(inner http.Handler, routes ...string) *Wrapper {
	r := &Wrapper{
		routes: map[string]bool{},
		inner:  inner,
	}
	for _, route := range routes {
		r.routes[route] = true
	}

	r.requestCount = stats.Int64("medreminder/http/requests", "Requests handled", stats.UnitDimensionless)
	r.requestCountView = &view.View{
		Name:        "medreminder/http/requests",
		Description: "Counter of requests that have been handled",

		TagKeys: []tag.Key{keyRoute, keyMethod, keyStatus},

		Measure:     r.requestCount,
		Aggregation: view.Count(),
	}

	r.latency = stats.Float64("medreminder/http/latency", "Request latency", stats.UnitMilliseconds)
	r.latencyView = &view.View{
		Name:        "medreminder/http/latency",
		Description: "Distribution of request latencies",

		TagKeys: []tag.Key{keyRoute, keyMethod},

		Measure:     r.latency,
		Aggregation: view.Distribution(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	}

	return r
}

func (h *Wrapper) RegisterMetrics() error {
	return view.Register(h.requestCountView, h.latencyView)
}

func (h *Wrapper) route(path string) string {
	if h.routes[path] {
		return path
	}
	return otherRoute
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Wrapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	h.inner.ServeHTTP(rec, r)

	elapsed := time.Since(start)
	glog.V(1).Infof("Served method=%s path=%q status=%d elapsed=%v remoteaddr=%q", r.Method, r.URL.Path, rec.status, elapsed, r.Header["X-Forwarded-For"])

	route := h.route(r.URL.Path)
	err := stats.RecordWithTags(
		r.Context(),
		[]tag.Mutator{
			tag.Upsert(keyRoute, route),
			tag.Upsert(keyMethod, r.Method),
			tag.Upsert(keyStatus, strconv.Itoa(rec.status)),
		},
		h.requestCount.M(1),
	)
	if err != nil {
		glog.Errorf("Error while recording request count: %v", err)
	}

	err = stats.RecordWithTags(
		r.Context(),
		[]tag.Mutator{
			tag.Upsert(keyRoute, route),
			tag.Upsert(keyMethod, r.Method),
		},
		h.latency.M(float64(elapsed)/float64(time.Millisecond)),
	)
	if err != nil {
		glog.Errorf("Error while recording request latency: %v", err)
	}
}
