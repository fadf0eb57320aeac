package scheduler

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/smartfarm/irrigation/internal/domain"
)

// SeedFile is the YAML layout accepted by irrigctl seed.
//
//	devices:
//	  - id: garden
//	    thingId: esp32-01
//	    maxMoistureThreshold: 30.5
//	    schedules:
//	      - id: morning
//	        startTime: "06:30"
//	        daysOfWeek: [monday, thursday]
//	        durationMinutes: 10
//	        isEnabled: true
type SeedFile struct {
	Devices []SeedDevice `yaml:"devices"`
}

type SeedDevice struct {
	ID                   string         `yaml:"id"`
	ThingID              string         `yaml:"thingId"`
	MaxMoistureThreshold yamlDecimal    `yaml:"maxMoistureThreshold"`
	Schedules            []SeedSchedule `yaml:"schedules"`
}

type SeedSchedule struct {
	ID              string   `yaml:"id"`
	StartTime       string   `yaml:"startTime"`
	DaysOfWeek      []string `yaml:"daysOfWeek"`
	DurationMinutes int      `yaml:"durationMinutes"`
	IsEnabled       *bool    `yaml:"isEnabled"`
}

// yamlDecimal keeps the scalar's literal text, so 30.50 is not read as a float.
type yamlDecimal struct{ decimal.Decimal }

func (d *yamlDecimal) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: threshold must be a number", n.Line)
	}
	v, err := decimal.NewFromString(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: threshold %q: %w", n.Line, n.Value, err)
	}
	d.Decimal = v
	return nil
}

// ParseSeed reads a seed file and returns its devices and schedules.
// Schedules default to enabled.
func ParseSeed(r io.Reader) ([]domain.Device, []domain.Schedule, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("decode seed: %w", err)
	}

	var (
		devices   []domain.Device
		schedules []domain.Schedule
	)
	for _, d := range f.Devices {
		if d.ID == "" {
			return nil, nil, fmt.Errorf("device without id")
		}
		devices = append(devices, domain.Device{
			ID:                   d.ID,
			ThingID:              d.ThingID,
			MaxMoistureThreshold: d.MaxMoistureThreshold.Decimal,
		})
		for _, s := range d.Schedules {
			if s.ID == "" {
				return nil, nil, fmt.Errorf("device %s: schedule without id", d.ID)
			}
			enabled := true
			if s.IsEnabled != nil {
				enabled = *s.IsEnabled
			}
			schedules = append(schedules, domain.Schedule{
				ID:              s.ID,
				DeviceID:        d.ID,
				StartTime:       s.StartTime,
				DaysOfWeek:      s.DaysOfWeek,
				DurationMinutes: s.DurationMinutes,
				Enabled:         enabled,
			})
		}
	}
	return devices, schedules, nil
}

// SeedWriter is satisfied by *sqliterepo.Store.
type SeedWriter interface {
	PutDevice(ctx context.Context, d domain.Device) error
	PutSchedule(ctx context.Context, s domain.Schedule) error
}

// Seed writes devices before their schedules.
func Seed(ctx context.Context, w SeedWriter, devices []domain.Device, schedules []domain.Schedule) error {
	for _, d := range devices {
		if err := w.PutDevice(ctx, d); err != nil {
			return err
		}
	}
	for _, s := range schedules {
		if err := w.PutSchedule(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
