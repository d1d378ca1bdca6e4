package poller

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
)

var (
	remindersSent = stats.Int64("medreminder/poller/reminders_sent", "Reminders emailed to users", stats.UnitDimensionless)
	dosesMissed   = stats.Int64("medreminder/poller/doses_missed", "Doses closed out as missed", stats.UnitDimensionless)
	passErrors    = stats.Int64("medreminder/poller/user_errors", "Users whose processing failed during a pass", stats.UnitDimensionless)
)

// Views exposes the poller's counters for registration with an exporter.
var Views = []*view.View{
	{
		Name:        "medreminder/poller/reminders_sent",
		Description: "Counter of reminders that have been sent",
		Measure:     remindersSent,
		Aggregation: view.Sum(),
	},
	{
		Name:        "medreminder/poller/doses_missed",
		Description: "Counter of doses closed out as missed",
		Measure:     dosesMissed,
		Aggregation: view.Count(),
	},
	{
		Name:        "medreminder/poller/user_errors",
		Description: "Counter of per-user processing failures",
		Measure:     passErrors,
		Aggregation: view.Count(),
	},
}

// RegisterMetrics registers the poller's views.
func RegisterMetrics() error {
	return view.Register(Views...)
}

func recordReminders(ctx context.Context, n int) {
	stats.Record(ctx, remindersSent.M(int64(n)))
}

func recordMissed(ctx context.Context) {
	stats.Record(ctx, dosesMissed.M(1))
}

func recordPassError(ctx context.Context) {
	stats.Record(ctx, passErrors.M(1))
}
