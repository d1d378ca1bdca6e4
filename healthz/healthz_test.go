package healthz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler(t *testing.T) {
	testCases := []struct {
		name     string
		checks   map[string]Check
		wantCode int
		wantBody string
	}{
		{
			name:     "no checks",
			wantCode: http.StatusOK,
			wantBody: "200 OK",
		},
		{
			name: "passing check",
			checks: map[string]Check{
				"firestore": func(ctx context.Context) error { return nil },
			},
			wantCode: http.StatusOK,
			wantBody: "200 OK",
		},
		{
			name: "failing check",
			checks: map[string]Check{
				"firestore": func(ctx context.Context) error { return errors.New("unreachable") },
			},
			wantCode: http.StatusServiceUnavailable,
			wantBody: "503 firestore unavailable\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(tc.checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tc.wantCode {
				t.Errorf("Status = %d, want %d", rec.Code, tc.wantCode)
			}
			if got := rec.Body.String(); got != tc.wantBody {
				t.Errorf("Body = %q, want %q", got, tc.wantBody)
			}
		})
	}
}
