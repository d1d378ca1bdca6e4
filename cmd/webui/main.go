package main

import (
	"context"
	"errors"
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
	"medreminder/httpmetrics"
	"medreminder/schedule"
	"medreminder/webui"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/profiler"
	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/golang/glog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/api/iterator"
)

var (
	debugListen         = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	uiListen            = flag.String("ui-listen", "127.0.0.1:8000", "Server address:port for ui endpoint.")
	dataProject         = flag.String("data-project", "", "GCP project that contains the application state.")
	googleOAuthClientID = flag.String("google-oauth-client-id", "", "OAuth client ID for Sign in with Google.  Leave empty to disable.")
	defaultTimeZone     = flag.String("default-time-zone", "Asia/Seoul", "Time zone for users who have not set one.")

	enableProfiling      = flag.Bool("enable-profiling", false, "Enable Cloud Profiler?")
	monitoring           = flag.Bool("monitoring", false, "Enable monitoring?")
	monitoringProject    = flag.String("monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	monitoringTraceRatio = flag.Float64("monitoring-trace-ratio", 0.0001, "What ratio of traces should be exported?")
)

func main() {
	flag.Parse()

	glog.CopyStandardLogTo("INFO")

	glog.Infof("flags:")
	glog.Infof("debug-listen: %v", *debugListen)
	glog.Infof("ui-listen: %v", *uiListen)
	glog.Infof("data-project: %v", *dataProject)
	glog.Infof("google-oauth-client-id: %v", *googleOAuthClientID)
	glog.Infof("default-time-zone: %v", *defaultTimeZone)
	glog.Infof("enable-profiling: %v", *enableProfiling)
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
	if metadata.OnGCE() {
		sa, err := metadata.Email("")
		if err != nil {
			return fmt.Errorf("while fetching service account: %w", err)
		}
		glog.Infof("serviceaccount: %s", sa)
	}

	// Cloud Profiler initialization, best done as early as possible.
	if *enableProfiling {
		if err := profiler.Start(profiler.Config{
			Service:        "medreminder-webui",
			ServiceVersion: "0.0.1",
			ProjectID:      *monitoringProject,
		}); err != nil {
			return fmt.Errorf("while initializing profiler: %w", err)
		}
	}

	var metricsOpts stackdriver.Options
	if *monitoring {
		traceOpts := []cloudtrace.Option{}
		if *monitoringProject != "" {
			traceOpts = append(traceOpts, cloudtrace.WithProjectID(*monitoringProject))
			metricsOpts.ProjectID = *monitoringProject
		}

		_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(*monitoringTraceRatio)))
		if err != nil {
			return fmt.Errorf("while installing Cloud Trace OpenTelemetry trace pipeline: %w", err)
		}
		defer traceShutdown()

		metricsOpts.MetricPrefix = "medreminder-webui"
		metricsOpts.ReportingInterval = 60 * time.Second
		exporter, err := stackdriver.NewExporter(metricsOpts)
		if err != nil {
			return fmt.Errorf("while initializing Stackdriver metrics exporter: %w", err)
		}
		if err := exporter.StartMetricsExporter(); err != nil {
			return fmt.Errorf("while starting Stackdriver metrics exporter: %w", err)
		}
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}
	defer fstore.Close()

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
	debugServer := &http.Server{
		Addr:    *debugListen,
		Handler: debugServeMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	db := dblayer.New(fstore, *googleOAuthClientID)
	ui := webui.New(
		db,
		webui.WithGoogleClientID(*googleOAuthClientID),
		webui.WithDefaultLocation(schedule.LoadLocation(*defaultTimeZone, time.Local)),
	)
	uiServeMux := http.NewServeMux()
	ui.Register(uiServeMux)

	metricsHandler := httpmetrics.New(uiServeMux,
		"/", "/dose-action", "/week", "/medicines", "/create-medicine",
		"/medicine-status", "/care-recipients", "/log-in", "/log-in/google", "/log-out",
	)
	if err := metricsHandler.RegisterMetrics(); err != nil {
		return fmt.Errorf("while registering HTTP metrics: %w", err)
	}

	uiServer := &http.Server{
		Addr:    *uiListen,
		Handler: metricsHandler,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := debugServer.ListenAndServe(); err != nil {
			glog.Fatalf("Debug server died: %v", err)
		}
	}()

	go func() {
		if err := uiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Fatalf("UI server died: %v", err)
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := uiServer.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("Error while shutting down UI server: %v", err)
	}

	glog.Flush()

	return nil
}
