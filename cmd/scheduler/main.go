package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartfarm/irrigation/internal/command"
	"github.com/smartfarm/irrigation/internal/config"
	"github.com/smartfarm/irrigation/internal/mqttclient"
	"github.com/smartfarm/irrigation/internal/repo/backend"
	"github.com/smartfarm/irrigation/internal/repo/sqliterepo"
	"github.com/smartfarm/irrigation/internal/scheduler"
	"github.com/smartfarm/irrigation/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	metricsAddr := flag.String("metrics", cfg.MetricsAddr, "metrics listen address (empty disables)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.Store.Backend, err)
	}
	defer store.Close()

	// Schedules always live in SQLite, even when readings come from elsewhere.
	schedules := store.SQLite
	if schedules == nil {
		schedules, err = sqliterepo.Open(cfg.Store.SQLitePath)
		if err != nil {
			log.Fatalf("open schedule store: %v", err)
		}
		defer schedules.Close()
	}

	mc, err := mqttclient.New(mqttclient.Options{BrokerURL: cfg.MQTT.BrokerURL, ClientID: cfg.MQTT.ClientID})
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer mc.Close()

	s := scheduler.New(
		schedules,
		service.NewReadingService(store.Readings),
		command.NewService(mc, cfg.MQTT.ControlTopic),
		scheduler.Options{Location: cfg.Scheduler.Location, MoistureField: cfg.Scheduler.MoistureField},
	)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		ms := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics: %v", err)
			}
		}()
		defer ms.Close()
		log.Printf("metrics listening on %s", *metricsAddr)
	}

	log.Printf("scheduler running (tz %s, field %q)", cfg.Scheduler.Location, cfg.Scheduler.MoistureField)
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("scheduler: %v", err)
	}
	log.Printf("scheduler stopped")
}
