package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // scheduler zones must resolve on minimal images

	"github.com/joho/godotenv"
)

// Config holds the settings shared by every entrypoint.
type Config struct {
	Store     Store
	MQTT      MQTT
	Scheduler Scheduler

	GRPCAddr    string
	HTTPAddr    string
	GRPCTarget  string
	MetricsAddr string

	CORSAllowedOrigins []string
	LambdaHandler      string
}

type Store struct {
	Backend string // memory | csv | sqlite | dynamodb | influxdb

	CSVPath    string
	SQLitePath string

	DynamoDBTable string
	AWSRegion     string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

type MQTT struct {
	BrokerURL    string
	ClientID     string
	ControlTopic string
}

type Scheduler struct {
	Location      *time.Location
	MoistureField string
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system environment variables")
	}

	cfg := Config{
		Store: Store{
			Backend:       strings.ToLower(envOr("STORE_BACKEND", "sqlite")),
			CSVPath:       envOr("CSV_PATH", "readings.csv"),
			SQLitePath:    envOr("SQLITE_PATH", "irrigation.db"),
			DynamoDBTable: envOr("DYNAMODB_TABLE", "IoTDeviceReadings"),
			AWSRegion:     os.Getenv("AWS_REGION"),
			InfluxURL:     os.Getenv("INFLUXDB_URL"),
			InfluxToken:   os.Getenv("INFLUXDB_TOKEN"),
			InfluxOrg:     os.Getenv("INFLUXDB_ORG"),
			InfluxBucket:  envOr("INFLUXDB_BUCKET", "readings"),
		},
		MQTT: MQTT{
			BrokerURL:    envOr("MQTT_BROKER", "tcp://localhost:1883"),
			ClientID:     os.Getenv("MQTT_CLIENT_ID"),
			ControlTopic: envOr("CONTROL_TOPIC", "esp32/temp/control"),
		},
		Scheduler: Scheduler{
			MoistureField: envOr("MOISTURE_FIELD", "temperature"),
		},
		GRPCAddr:           envOr("GRPC_ADDR", ":9090"),
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		GRPCTarget:         envOr("GRPC_TARGET", "127.0.0.1:9090"),
		MetricsAddr:        envOr("METRICS_ADDR", ":9100"),
		CORSAllowedOrigins: splitList(envOr("CORS_ALLOWED_ORIGINS", "*")),
		LambdaHandler:      os.Getenv("LAMBDA_HANDLER"),
	}

	tz := envOr("SCHEDULER_TZ", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("SCHEDULER_TZ %q: %w", tz, err)
	}
	cfg.Scheduler.Location = loc

	if err := cfg.Store.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (s Store) validate() error {
	switch s.Backend {
	case "memory", "csv", "sqlite", "dynamodb":
		return nil
	case "influxdb":
		if s.InfluxURL == "" || s.InfluxToken == "" || s.InfluxOrg == "" {
			return fmt.Errorf("InfluxDB configuration is incomplete. Please set INFLUXDB_URL, INFLUXDB_TOKEN, and INFLUXDB_ORG environment variables")
		}
		return nil
	}
	return fmt.Errorf("unknown STORE_BACKEND %q", s.Backend)
}

func envOr(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
