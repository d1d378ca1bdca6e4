package httpmetrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opencensus.io/stats/view"
)

func TestWrapperCountsRequestsByRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		w.Write([]byte("home"))
	})

	h := New(mux, "/", "/week")
	if err := h.RegisterMetrics(); err != nil {
		t.Fatalf("Error while registering metrics: %v", err)
	}
	defer view.Unregister(h.requestCountView, h.latencyView)

	for _, target := range []string{"/", "/", "/wp-admin"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	}

	rows, err := view.RetrieveData(h.requestCountView.Name)
	if err != nil {
		t.Fatalf("Error while retrieving view data: %v", err)
	}

	got := map[string]int64{}
	for _, row := range rows {
		var route, status string
		for _, tg := range row.Tags {
			switch tg.Key {
			case keyRoute:
				route = tg.Value
			case keyStatus:
				status = tg.Value
			}
		}
		got[route+" "+status] = row.Data.(*view.CountData).Value
	}

	want := map[string]int64{
		"/ 200":     2,
		"other 404": 1,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad request counts; diff (-got +want)\n%s", diff)
	}
}
