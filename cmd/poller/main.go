package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"medreminder/dblayer"
	"medreminder/healthz"
	"medreminder/notifylog"
	"medreminder/poller"
	"medreminder/reportstore"
	"medreminder/schedule"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"
	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudmetrics "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/metric"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/golang/glog"
	"github.com/sendgrid/sendgrid-go"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/api/iterator"
	secretmanagerpb "google.golang.org/genproto/googleapis/cloud/secretmanager/v1"
)

var (
	debugListen       = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	recheckPeriod     = flag.Duration("recheck-period", 1*time.Minute, "Time between passes over all users")
	concurrency       = flag.Int64("concurrency", 16, "How many users to process at once")
	dataProject       = flag.String("data-project", "", "GCP project that contains the application state.")
	sendgridKeySecret = flag.String("sendgrid-key-secret", "", "GCP Secret Manager secret name that contains the Sendgrid API key")
	notifyLogDir      = flag.String("notify-log-dir", "/var/lib/medreminder/notify-log", "Directory of the sent-reminder log")
	notifyLogClear    = flag.Bool("notify-log-clear", false, "Start with an empty sent-reminder log?")
	reportBucket      = flag.String("report-bucket", "", "GCS bucket for daily summaries.  Leave empty to disable archiving.")
	defaultTimeZone   = flag.String("default-time-zone", "Asia/Seoul", "Time zone for users who have not set one.")
	baseURL           = flag.String("base-url", "https://medreminder.dev", "Address of the web UI, linked from reminder emails.")

	monitoring           = flag.Bool("monitoring", false, "Enable monitoring?")
	monitoringProject    = flag.String("monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	monitoringTraceRatio = flag.Float64("monitoring-trace-ratio", 0.0001, "What ratio of traces should be exported?")
)

// gcPeriod is how often the sent-reminder log reclaims space from expired
// entries.
const gcPeriod = 10 * time.Minute

func main() {
	flag.Parse()

	glog.CopyStandardLogTo("INFO")

	glog.Infof("flags:")
	glog.Infof("debug-listen: %v", *debugListen)
	glog.Infof("recheck-period: %v", *recheckPeriod)
	glog.Infof("concurrency: %v", *concurrency)
	glog.Infof("data-project: %v", *dataProject)
	glog.Infof("sendgrid-key-secret: %v", *sendgridKeySecret)
	glog.Infof("notify-log-dir: %v", *notifyLogDir)
	glog.Infof("notify-log-clear: %v", *notifyLogClear)
	glog.Infof("report-bucket: %v", *reportBucket)
	glog.Infof("default-time-zone: %v", *defaultTimeZone)
	glog.Infof("base-url: %v", *baseURL)

	glog.Infof("monitoring: %v", *monitoring)
	glog.Infof("monitoring-project: %v", *monitoringProject)
	glog.Infof("monitoring-trace-ratio: %v", *monitoringTraceRatio)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx); err != nil {
		glog.Exitf("Error: %v", err)
	}
}

func do(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if *monitoring {
		metricsOpts := []cloudmetrics.Option{}
		traceOpts := []cloudtrace.Option{}
		censusOpts := stackdriver.Options{
			MetricPrefix:      "medreminder-poller",
			ReportingInterval: 60 * time.Second,
		}
		if *monitoringProject != "" {
			metricsOpts = append(metricsOpts, cloudmetrics.WithProjectID(*monitoringProject))
			traceOpts = append(traceOpts, cloudtrace.WithProjectID(*monitoringProject))
			censusOpts.ProjectID = *monitoringProject
		}

		_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(*monitoringTraceRatio)))
		if err != nil {
			return fmt.Errorf("while installing Cloud Trace OpenTelemetry trace pipeline: %w", err)
		}
		defer traceShutdown()

		pusher, err := cloudmetrics.InstallNewPipeline(metricsOpts)
		if err != nil {
			return fmt.Errorf("while installing Cloud Metrics OpenTelemetry meter pipeline: %w", err)
		}
		defer pusher.Stop(ctx)

		// The poller's counters are OpenCensus views.
		exporter, err := stackdriver.NewExporter(censusOpts)
		if err != nil {
			return fmt.Errorf("while initializing Stackdriver metrics exporter: %w", err)
		}
		if err := exporter.StartMetricsExporter(); err != nil {
			return fmt.Errorf("while starting Stackdriver metrics exporter: %w", err)
		}
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	if err := poller.RegisterMetrics(); err != nil {
		return fmt.Errorf("while registering poller metrics: %w", err)
	}

	sg, err := newSendgridClient(ctx)
	if err != nil {
		return fmt.Errorf("while creating Sendgrid client: %w", err)
	}

	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}
	defer fstore.Close()

	sent, err := notifylog.Open(*notifyLogDir, *notifyLogClear)
	if err != nil {
		return fmt.Errorf("while opening notify log: %w", err)
	}
	defer sent.Close()

	opts := []poller.PollerOpt{
		poller.WithRecheckPeriod(*recheckPeriod),
		poller.WithConcurrency(*concurrency),
		poller.WithDefaultLocation(schedule.LoadLocation(*defaultTimeZone, time.Local)),
		poller.WithBaseURL(*baseURL),
	}
	if *reportBucket != "" {
		gcs, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("while creating GCS client: %w", err)
		}
		defer gcs.Close()
		opts = append(opts, poller.WithReportArchive(reportstore.New(gcs, *reportBucket)))
	}

	p := poller.New(dblayer.New(fstore, ""), sg, sent, opts...)

	debugServeMux := http.NewServeMux()
	debugServeMux.Handle("/healthz", healthz.New(nil))
	debugServeMux.Handle("/readyz", healthz.New(map[string]healthz.Check{
		"firestore": func(ctx context.Context) error {
			iter := fstore.Collection("Users").Limit(1).Documents(ctx)
			defer iter.Stop()
			if _, err := iter.Next(); err != nil && err != iterator.Done {
				return err
			}
			return nil
		},
	}))
	debugServeMux.HandleFunc("/debug/pprof/", pprof.Index)
	debugServeMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugServeMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugServeMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugServeMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	p.RegisterDebugHandlers(debugServeMux)
	debugServer := &http.Server{
		Addr:    *debugListen,
		Handler: debugServeMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := debugServer.ListenAndServe(); err != nil {
			glog.Fatalf("Debug server died: %v", err)
		}
	}()

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		p.Run(ctx)
	}()

	go func() {
		ticker := time.NewTicker(gcPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := sent.CollectGarbage(); err != nil {
				glog.Errorf("Error while collecting notify log garbage: %v", err)
			}
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	// Stop the loops before the notify log is closed.
	cancel()
	<-pollerDone

	glog.Flush()

	return nil
}

func newSendgridClient(ctx context.Context) (*sendgrid.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	secretClient, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("while creating Secret Manager client: %w", err)
	}
	defer secretClient.Close()

	resp, err := secretClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", *dataProject, *sendgridKeySecret),
	})
	if err != nil {
		return nil, fmt.Errorf("while pulling secret: %w", err)
	}

	return sendgrid.NewSendClient(string(resp.GetPayload().GetData())), nil
}
