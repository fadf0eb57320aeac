// Package scheduler evaluates irrigation schedules once per minute and opens
// valves whose latest moisture reading is below the device threshold.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartfarm/irrigation/internal/command"
	"github.com/smartfarm/irrigation/internal/domain"
)

const clockLayout = "15:04"

// ScheduleStore is satisfied by *sqliterepo.Store.
type ScheduleStore interface {
	DueSchedules(ctx context.Context, startTime, weekday string) ([]domain.DueSchedule, error)
	AppendExecutionLog(ctx context.Context, l domain.ExecutionLog) error
}

// ReadingSource is satisfied by *service.ReadingService.
type ReadingSource interface {
	LatestReading(ctx context.Context, thingID string) (domain.Reading, bool, error)
}

// CommandSender is satisfied by *command.Service.
type CommandSender interface {
	Send(ctx context.Context, cmd command.Command) error
}

type Options struct {
	// Location decides which wall-clock minute and weekday "now" is.
	Location *time.Location
	// MoistureField names the reading value compared against the threshold.
	MoistureField string
}

type Scheduler struct {
	store    ScheduleStore
	readings ReadingSource
	commands CommandSender
	loc      *time.Location
	field    string
	newID    func() string
}

func New(store ScheduleStore, readings ReadingSource, commands CommandSender, opts Options) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	field := opts.MoistureField
	if field == "" {
		field = "temperature"
	}
	return &Scheduler{
		store:    store,
		readings: readings,
		commands: commands,
		loc:      loc,
		field:    field,
		newID:    uuid.NewString,
	}
}

// Summary counts the outcome of one pass.
type Summary struct {
	ScheduledTime string `json:"scheduledTime"`
	Weekday       string `json:"weekday"`
	Due           int    `json:"due"`
	Executed      int    `json:"executed"`
	Skipped       int    `json:"skipped"`
	// Ignored schedules had incomplete data or no reading; no log is written.
	Ignored int `json:"ignored"`
}

// RunAt evaluates the schedules due at now's minute. A failing schedule does
// not stop the others; all failures are returned joined.
func (s *Scheduler) RunAt(ctx context.Context, now time.Time) (Summary, error) {
	local := now.In(s.loc)
	sum := Summary{
		ScheduledTime: local.Format(clockLayout),
		Weekday:       strings.ToLower(local.Weekday().String()),
	}
	log.Printf("scheduler: checking %s %s (%s)", sum.ScheduledTime, sum.Weekday, s.loc)

	due, err := s.store.DueSchedules(ctx, sum.ScheduledTime, sum.Weekday)
	if err != nil {
		return sum, fmt.Errorf("load due schedules: %w", err)
	}
	sum.Due = len(due)
	if len(due) == 0 {
		log.Printf("scheduler: no schedules due")
		return sum, nil
	}

	var errs []error
	for _, ds := range due {
		action, err := s.evaluate(ctx, ds, sum.ScheduledTime, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", ds.Schedule.ID, err))
			observeDecision("error")
			continue
		}
		observeDecision(string(action))
		switch action {
		case domain.ActionExecuted:
			sum.Executed++
		case domain.ActionSkipped:
			sum.Skipped++
		default:
			sum.Ignored++
		}
	}
	return sum, errors.Join(errs...)
}

const actionIgnored domain.Action = "ignored"

func (s *Scheduler) evaluate(ctx context.Context, ds domain.DueSchedule, scheduled string, now time.Time) (domain.Action, error) {
	dev, sc := ds.Device, ds.Schedule
	threshold := dev.MaxMoistureThreshold
	if dev.ThingID == "" || threshold.IsZero() || sc.DurationMinutes <= 0 {
		log.Printf("scheduler: incomplete data for schedule %s (thingId=%q threshold=%s duration=%d), skipping",
			sc.ID, dev.ThingID, threshold, sc.DurationMinutes)
		return actionIgnored, nil
	}

	reading, ok, err := s.readings.LatestReading(ctx, dev.ThingID)
	if err != nil {
		return "", fmt.Errorf("latest reading for %s: %w", dev.ThingID, err)
	}
	if !ok {
		log.Printf("scheduler: no reading for thingId %s, skipping", dev.ThingID)
		return actionIgnored, nil
	}
	current, ok := reading.Value(s.field)
	if !ok {
		log.Printf("scheduler: reading %s@%d has no %q value, skipping", dev.ThingID, reading.Timestamp, s.field)
		return actionIgnored, nil
	}

	entry := domain.ExecutionLog{
		ID:            s.newID(),
		DeviceID:      dev.ID,
		ScheduleID:    sc.ID,
		Timestamp:     now.UTC(),
		ScheduledTime: scheduled,
	}

	if current.LessThan(threshold) {
		log.Printf("scheduler: moisture %s below threshold %s for %s, opening valve", current, threshold, dev.ThingID)
		cmd := command.Command{Name: command.OpenValve, DurationSeconds: sc.DurationMinutes * 60}
		if err := s.commands.Send(ctx, cmd); err != nil {
			return "", err
		}
		entry.ActionTaken = domain.ActionExecuted
		entry.Reason = fmt.Sprintf("Irrigation triggered for %d minutes.", sc.DurationMinutes)
	} else {
		log.Printf("scheduler: moisture %s at or above threshold %s for %s, skipping irrigation", current, threshold, dev.ThingID)
		entry.ActionTaken = domain.ActionSkipped
		entry.Reason = fmt.Sprintf("Moisture (%s) was at or above the threshold (%s).", current, threshold)
	}

	if err := s.store.AppendExecutionLog(ctx, entry); err != nil {
		return "", err
	}
	return entry.ActionTaken, nil
}

// Run evaluates schedules at the start of every minute until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := time.Now().Truncate(time.Minute).Add(time.Minute)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case t := <-timer.C:
			sum, err := s.RunAt(ctx, t)
			if err != nil {
				log.Printf("scheduler: pass at %s finished with errors: %v", sum.ScheduledTime, err)
			}
		}
	}
}
