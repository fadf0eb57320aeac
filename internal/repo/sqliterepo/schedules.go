package sqliterepo

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smartfarm/irrigation/internal/cursor"
	"github.com/smartfarm/irrigation/internal/domain"
)

// PutDevice inserts or replaces a device. A zero threshold is stored as NULL.
func (s *Store) PutDevice(ctx context.Context, d domain.Device) error {
	var threshold sql.NullString
	if !d.MaxMoistureThreshold.IsZero() {
		threshold = sql.NullString{String: cursor.NumberLiteral(d.MaxMoistureThreshold), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO devices (id, thing_id, max_moisture_threshold) VALUES (?, ?, ?)`,
		d.ID, d.ThingID, threshold,
	)
	if err != nil {
		return fmt.Errorf("put device %q: %w", d.ID, err)
	}
	return nil
}

func (s *Store) PutSchedule(ctx context.Context, sc domain.Schedule) error {
	days := make([]string, 0, len(sc.DaysOfWeek))
	for _, d := range sc.DaysOfWeek {
		days = append(days, strings.ToLower(strings.TrimSpace(d)))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO schedules (id, device_id, start_time, days_of_week, duration_minutes, enabled)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.DeviceID, sc.StartTime, strings.Join(days, ","), sc.DurationMinutes, sc.Enabled,
	)
	if err != nil {
		return fmt.Errorf("put schedule %q: %w", sc.ID, err)
	}
	return nil
}

// DueSchedules returns enabled schedules starting at startTime ("15:04") on
// weekday (lowercase English name), each joined with its device.
func (s *Store) DueSchedules(ctx context.Context, startTime, weekday string) ([]domain.DueSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.device_id, s.start_time, s.days_of_week, s.duration_minutes, s.enabled,
		       d.id, d.thing_id, d.max_moisture_threshold
		FROM schedules s
		JOIN devices d ON d.id = s.device_id
		WHERE s.start_time = ? AND s.enabled = 1
		ORDER BY s.id`, startTime)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.DueSchedule
	for rows.Next() {
		var (
			ds        domain.DueSchedule
			days      string
			threshold sql.NullString
		)
		if err := rows.Scan(
			&ds.Schedule.ID, &ds.Schedule.DeviceID, &ds.Schedule.StartTime, &days,
			&ds.Schedule.DurationMinutes, &ds.Schedule.Enabled,
			&ds.Device.ID, &ds.Device.ThingID, &threshold,
		); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		if days != "" {
			ds.Schedule.DaysOfWeek = strings.Split(days, ",")
		}
		if !slices.Contains(ds.Schedule.DaysOfWeek, weekday) {
			continue
		}
		if threshold.Valid {
			t, err := decimal.NewFromString(threshold.String)
			if err != nil {
				return nil, fmt.Errorf("device %q threshold %q: %w", ds.Device.ID, threshold.String, err)
			}
			ds.Device.MaxMoistureThreshold = t
		}
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return out, nil
}

func (s *Store) AppendExecutionLog(ctx context.Context, l domain.ExecutionLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_logs (id, device_id, schedule_id, ts, scheduled_time, action_taken, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.DeviceID, l.ScheduleID, l.Timestamp.UTC().Format(time.RFC3339Nano), l.ScheduledTime, string(l.ActionTaken), l.Reason,
	)
	if err != nil {
		return fmt.Errorf("append execution log: %w", err)
	}
	return nil
}

// ExecutionLogs returns a device's logs, oldest first.
func (s *Store) ExecutionLogs(ctx context.Context, deviceID string) ([]domain.ExecutionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, schedule_id, ts, scheduled_time, action_taken, reason
		FROM execution_logs WHERE device_id = ? ORDER BY ts, id`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query execution logs: %w", err)
	}
	defer rows.Close()

	out := []domain.ExecutionLog{}
	for rows.Next() {
		var (
			l      domain.ExecutionLog
			ts     string
			action string
		)
		if err := rows.Scan(&l.ID, &l.DeviceID, &l.ScheduleID, &ts, &l.ScheduledTime, &action, &l.Reason); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		if l.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("execution log %q timestamp: %w", l.ID, err)
		}
		l.ActionTaken = domain.Action(action)
		out = append(out, l)
	}
	return out, rows.Err()
}
