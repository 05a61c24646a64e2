// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/common/observability"
	"ipo-readiness/internal/common/validation"
	"ipo-readiness/pkg/registry"

	// Lead workers (7)
	aa "ipo-readiness/internal/workers/lead/assign-assessor"
	cp "ipo-readiness/internal/workers/lead/confirm-payment"
	cs "ipo-readiness/internal/workers/lead/convert-submission"
	cl "ipo-readiness/internal/workers/lead/create-lead"
	frd "ipo-readiness/internal/workers/lead/fetch-registry-data"
	sl "ipo-readiness/internal/workers/lead/search-leads"
	uls "ipo-readiness/internal/workers/lead/update-lead-status"

	// Assessment workers (6)
	ce "ipo-readiness/internal/workers/assessment/complete-eligibility"
	eqs "ipo-readiness/internal/workers/assessment/edit-question-snapshot"
	ra "ipo-readiness/internal/workers/assessment/review-assessment"
	saa "ipo-readiness/internal/workers/assessment/save-assessment-answers"
	sa "ipo-readiness/internal/workers/assessment/submit-assessment"
	uea "ipo-readiness/internal/workers/assessment/update-eligibility-answers"

	// Portal and document workers (3)
	md "ipo-readiness/internal/workers/document/manage-document"
	ipc "ipo-readiness/internal/workers/portal/issue-portal-code"
	vpc "ipo-readiness/internal/workers/portal/verify-portal-code"
)

const defaultRegistryPath = "configs/activity-registry.json"

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("starting worker manager", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
		"storage":     cfg.Storage.Driver,
	})

	obs, err := observability.New(observability.Options{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: tracingEndpoint(cfg.Tracing),
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: cfg.Camunda.Plaintext,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	log.Info("Zeebe client connected", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

	// --- Stores, caches and services ---
	app, err := newApp(ctx, cfg, obs, log)
	if err != nil {
		zapLog.Fatal("dependency init failed", zap.Error(err))
	}

	schemas := validation.New()
	if reg, err := registry.LoadRegistry(registryPath()); err != nil {
		log.Warn("activity registry not loaded, job payloads are not schema checked", map[string]interface{}{"error": err.Error()})
	} else if err := schemas.LoadRegistry(reg); err != nil {
		zapLog.Fatal("activity registry schemas invalid", zap.Error(err))
	}

	workers := registerWorkers(cfg, zeebe, app, schemas, obs, log)
	log.Info("workers registered", map[string]interface{}{"count": len(workers)})

	// --- Health & Metrics Server ---
	srv := &http.Server{Addr: cfg.Server.Address, Handler: healthMux(app)}
	go func() {
		log.Info("health/metrics server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health/metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping workers", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range workers {
		jw.Close()
	}
	for _, jw := range workers {
		jw.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("health server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	app.Close()
	obs.Shutdown(shutdownCtx)

	if err := zeebe.Close(); err != nil {
		log.Error("error closing Zeebe client", map[string]interface{}{"error": err.Error()})
	}
	log.Info("worker manager stopped gracefully", nil)
}

func registerWorkers(cfg *config.Config, zeebe *camunda.Client, app *App, schemas *validation.Validator, obs *observability.Observability, log logger.Logger) []worker.JobWorker {
	var started []worker.JobWorker
	start := func(taskType string, handler camunda.HandlerFunc) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if jw := camunda.StartWorker(zeebe.Zeebe(), taskType, wcfg, handler, schemas, obs, log); jw != nil {
			started = append(started, jw)
		}
	}
	wcfg := func(taskType string) config.WorkerConfig { return config.GetWorkerConfig(cfg, taskType) }

	// --- 1. Lead workers ---
	start(cl.TaskType, cl.NewHandler(cl.LoadConfig(wcfg(cl.TaskType)), app.Gate, app.Leads, log).Handle)
	start(aa.TaskType, aa.NewHandler(aa.LoadConfig(wcfg(aa.TaskType)), app.Gate, app.Leads, log).Handle)
	start(uls.TaskType, uls.NewHandler(uls.LoadConfig(wcfg(uls.TaskType)), app.Gate, app.Leads, log).Handle)
	start(frd.TaskType, frd.NewHandler(frd.LoadConfig(wcfg(frd.TaskType)), app.Gate, app.Leads, log).Handle)
	start(cs.TaskType, cs.NewHandler(cs.LoadConfig(wcfg(cs.TaskType)), app.Gate, app.Leads, log).Handle)
	start(cp.TaskType, cp.NewHandler(cp.LoadConfig(wcfg(cp.TaskType)), app.Leads, log).Handle)
	if app.Search != nil {
		start(sl.TaskType, sl.NewHandler(sl.LoadConfig(wcfg(sl.TaskType)), app.Gate, app.Search, log).Handle)
	} else {
		log.Warn("elasticsearch not configured, search worker not started", map[string]interface{}{"taskType": sl.TaskType})
	}

	// --- 2. Assessment workers ---
	start(uea.TaskType, uea.NewHandler(uea.LoadConfig(wcfg(uea.TaskType)), app.Gate, app.Assessments, log).Handle)
	start(ce.TaskType, ce.NewHandler(ce.LoadConfig(wcfg(ce.TaskType)), app.Gate, app.Assessments, log).Handle)
	start(saa.TaskType, saa.NewHandler(saa.LoadConfig(wcfg(saa.TaskType)), app.Gate, app.Assessments, app.Saver, log).Handle)
	start(sa.TaskType, sa.NewHandler(sa.LoadConfig(wcfg(sa.TaskType)), app.Gate, app.Assessments, log).Handle)
	start(ra.TaskType, ra.NewHandler(ra.LoadConfig(wcfg(ra.TaskType)), app.Gate, app.Assessments, log).Handle)
	start(eqs.TaskType, eqs.NewHandler(eqs.LoadConfig(wcfg(eqs.TaskType)), app.Gate, app.Assessments, log).Handle)

	// --- 3. Portal workers ---
	if app.Portal != nil {
		start(ipc.TaskType, ipc.NewHandler(ipc.LoadConfig(wcfg(ipc.TaskType)), app.Gate, app.Portal, log).Handle)
		start(vpc.TaskType, vpc.NewHandler(vpc.LoadConfig(wcfg(vpc.TaskType)), app.Portal, log).Handle)
	} else {
		log.Warn("portal signing secret missing, portal workers not started", nil)
	}

	// --- 4. Document workers ---
	if app.Documents != nil {
		start(md.TaskType, md.NewHandler(md.LoadConfig(wcfg(md.TaskType)), app.Gate, app.Documents, log).Handle)
	} else {
		log.Warn("s3 bucket not configured, document worker not started", map[string]interface{}{"taskType": md.TaskType})
	}

	return started
}

func healthMux(app *App) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.Ready(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func tracingEndpoint(t config.TracingConfig) string {
	if !t.Enabled {
		return ""
	}
	return t.JaegerEndpoint
}

func registryPath() string {
	if p := os.Getenv("ACTIVITY_REGISTRY_PATH"); p != "" {
		return p
	}
	return defaultRegistryPath
}
