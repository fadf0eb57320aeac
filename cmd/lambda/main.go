package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/smartfarm/irrigation/internal/command"
	"github.com/smartfarm/irrigation/internal/config"
	"github.com/smartfarm/irrigation/internal/mqttclient"
	"github.com/smartfarm/irrigation/internal/repo/backend"
	"github.com/smartfarm/irrigation/internal/repo/sqliterepo"
	"github.com/smartfarm/irrigation/internal/scheduler"
	"github.com/smartfarm/irrigation/internal/service"
	lambdahandler "github.com/smartfarm/irrigation/internal/transport/lambda"
)

// Everything below runs once per cold start; the handles are reused across
// invocations.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	h := &lambdahandler.Handlers{}
	var store *backend.Backend
	openStore := func() *backend.Backend {
		s, err := backend.Open(ctx, cfg.Store)
		if err != nil {
			log.Fatalf("open %s store: %v", cfg.Store.Backend, err)
		}
		return s
	}
	openCommands := func() *command.Service {
		mc, err := mqttclient.New(mqttclient.Options{BrokerURL: cfg.MQTT.BrokerURL, ClientID: cfg.MQTT.ClientID})
		if err != nil {
			log.Fatalf("mqtt: %v", err)
		}
		return command.NewService(mc, cfg.MQTT.ControlTopic)
	}

	switch cfg.LambdaHandler {
	case "command":
		h.Commands = openCommands()
		lambda.Start(h.SendCommand)

	case "scheduler":
		store = openStore()
		schedules := store.SQLite
		if schedules == nil {
			if schedules, err = sqliterepo.Open(cfg.Store.SQLitePath); err != nil {
				log.Fatalf("open schedule store: %v", err)
			}
		}
		h.Scheduler = scheduler.New(schedules, service.NewReadingService(store.Readings), openCommands(),
			scheduler.Options{Location: cfg.Scheduler.Location, MoistureField: cfg.Scheduler.MoistureField})
		lambda.Start(h.RunSchedules)

	case "readings", "":
		store = openStore()
		h.Readings = service.NewReadingService(store.Readings)
		lambda.Start(h.GetReadings)

	default:
		log.Fatalf("unknown LAMBDA_HANDLER %q (want readings, command or scheduler)", cfg.LambdaHandler)
	}
}
