package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"

	"github.com/willwooten/thermidor/internal/config"
	"github.com/willwooten/thermidor/internal/httpapi"
	"github.com/willwooten/thermidor/internal/registry"
	"github.com/willwooten/thermidor/internal/scheduler"
	"github.com/willwooten/thermidor/internal/sqlstore"
	"github.com/willwooten/thermidor/internal/task"
	"github.com/willwooten/thermidor/internal/telemetry"
	"github.com/willwooten/thermidor/internal/telemetry/resilience"
	"github.com/willwooten/thermidor/internal/workflow"
)

const serviceName = "thermidor"

func main() {
	_ = godotenv.Load()

	v := viper.New()
	root := &cobra.Command{
		Use:   "thermidor",
		Short: "DAG-based shell-command workflow execution system",
	}
	config.BindFlags(root, v)

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newMigrateCmd(v))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and HTTP projection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(config.Load(v))
		},
	}
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply ordered SQL migration files against the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(config.Load(v))
		},
	}
}

func runServe(cfg config.Config) error {
	if cfg.JSONLog {
		os.Setenv("THERMIDOR_JSON_LOG", "1")
	}
	telemetry.InitLogging(serviceName)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := telemetry.InitTracer(ctx, serviceName)
	shutdownMetrics, promHandler := telemetry.InitMetrics(ctx, serviceName)

	snapshot, err := registry.OpenSnapshotStore(cfg.SnapshotDBPath)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer snapshot.Close()

	reg, err := registry.InitializeWorkflows(cfg.WorkflowDir, registry.DefaultDefinitions(), snapshot)
	if err != nil {
		return fmt.Errorf("initialize workflows: %w", err)
	}

	sched := scheduler.New(telemetry.Meter())
	wg := reg.StartWorkflows(ctx, sched)

	if cfg.CronEnabled {
		startCron(ctx, cfg, reg, sched, telemetry.Meter())
	}

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewRouter(reg, cfg.CORSOrigin))
	mux.Handle("/metrics", promHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		slog.Info("http projection listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	wg.Wait()

	telemetry.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	slog.Info("shutdown complete")
	return nil
}

func runMigrate(cfg config.Config) error {
	telemetry.InitLogging(serviceName)

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate: --database-url is required")
	}

	ctx := context.Background()
	db, err := sqlstore.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := sqlstore.RunMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations applied", "folder", cfg.MigrationsDir)
	return nil
}

// startCron schedules every workflow for periodic re-execution, bounded by
// one circuit breaker shared by all workflows: when scheduled runs keep
// ending with a failed task, the breaker opens and no workflow is
// retriggered until it cools down. This is an addition
// beyond the single-process, no-fairness core the specification describes
// (see DESIGN.md for why it does not contradict that scope).
func startCron(ctx context.Context, cfg config.Config, reg *registry.Registry, sched *scheduler.Scheduler, meter metric.Meter) {
	c := cron.New()
	breaker := resilience.NewCircuitBreaker(3, 0.5, time.Minute, 1)
	cronRuns, _ := meter.Int64Counter("thermidor_cron_runs_total")
	cronSkipped, _ := meter.Int64Counter("thermidor_cron_skipped_total")

	_, err := c.AddFunc(cfg.CronSchedule, func() {
		if !breaker.Allow() {
			cronSkipped.Add(ctx, 1)
			slog.Warn("cron: circuit open, skipping scheduled re-execution")
			return
		}

		wg := reg.StartWorkflows(ctx, sched)
		wg.Wait()
		cronRuns.Add(ctx, 1)

		anyFailed := false
		_ = reg.EachSnapshot(func(_ int, _ string, w *workflow.Workflow) {
			for _, t := range w.Tasks() {
				if t.State == task.Failure {
					anyFailed = true
				}
			}
		})
		breaker.RecordResult(!anyFailed)
	})
	if err != nil {
		slog.Error("cron: failed to register schedule", "schedule", cfg.CronSchedule, "error", err)
		return
	}

	c.Start()
	go func() {
		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
	}()
}
