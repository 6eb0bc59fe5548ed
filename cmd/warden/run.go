package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/healer"
	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/schedule"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the healer daemon",
	Long: `Run the scan loop on its configured interval, with the metrics and
status endpoint listening on the configured address. Only one warden
process per data directory can run at a time.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	broker := newEventBroker()
	defer broker.Stop()

	h := healer.New(a.store, a.gateway, a.policies, a.alerts, broker)
	lock := schedule.NewFileLock(schedule.DefaultLockPath(a.cfg.DataDir))
	runner := schedule.NewRunner(h, a.policies, lock, a.store)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(runner.Status())
	})
	server := &http.Server{Addr: a.cfg.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	daemonLogger := log.WithComponent("daemon")
	daemonLogger.Info().
		Str("listen", a.cfg.Listen).
		Str("data_dir", a.cfg.DataDir).
		Msg("warden daemon running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		daemonLogger.Info().Msg("shutting down")
	case err := <-errCh:
		daemonLogger.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	return nil
}

// newEventBroker wires the daemon's event stream. The distribution loop
// must be running before the healer publishes anything: Publish blocks
// once the broker buffer fills and nothing drains it.
func newEventBroker() *events.Broker {
	broker := events.NewBroker()
	broker.Start()
	go logEvents(broker)
	return broker
}

// logEvents mirrors the remediation event stream into the structured log.
func logEvents(broker *events.Broker) {
	logger := log.WithComponent("events")
	sub := broker.Subscribe()
	for event := range sub {
		logger.Info().
			Str("type", string(event.Type)).
			Str("namespace", event.Namespace).
			Str("target", event.Target).
			Msg(event.Message)
	}
}
