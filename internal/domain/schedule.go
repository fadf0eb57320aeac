package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Device is an irrigation controller registered for scheduling.
type Device struct {
	ID                   string
	ThingID              string
	MaxMoistureThreshold decimal.Decimal
}

// Schedule fires once per matching day at StartTime ("15:04", local to the
// scheduler's time zone).
type Schedule struct {
	ID              string
	DeviceID        string
	StartTime       string
	DaysOfWeek      []string // lowercase English weekday names
	DurationMinutes int
	Enabled         bool
}

// DueSchedule pairs a schedule with the device it belongs to.
type DueSchedule struct {
	Schedule Schedule
	Device   Device
}

type Action string

const (
	ActionExecuted Action = "executed"
	ActionSkipped  Action = "skipped"
)

// ExecutionLog records what the scheduler decided for one schedule.
type ExecutionLog struct {
	ID            string
	DeviceID      string
	ScheduleID    string
	Timestamp     time.Time
	ScheduledTime string
	ActionTaken   Action
	Reason        string
}
