// Package healthz serves liveness and readiness probes.
package healthz

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type Handler struct {
	checks  map[string]Check
	timeout time.Duration
}

// New returns a handler that answers "200 OK" once every check passes.  With
// no checks it always does, which suits /healthz.
func New(checks map[string]Check) *Handler {
	return &Handler{
		checks:  checks,
		timeout: 5 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			glog.Errorf("Health check %s failed: %v", name, err)
			http.Error(w, fmt.Sprintf("503 %s unavailable", name), http.StatusServiceUnavailable)
			return
		}
	}

	w.Write([]byte("200 OK"))
}
