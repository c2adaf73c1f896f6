package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar-day shape accepted by the search endpoints
	DateLayout = "2006-01-02"
	// ClockLayout is the HH:MM shape of departure/arrival times
	ClockLayout = "15:04"

	ArrivalSameDay = "当日到达"
	ArrivalNextDay = "次日到达"
)

// ScheduleRow is one train running a route on a date.
// Maps 1:1 to the schedule_rows table.
type ScheduleRow struct {
	ID              int64   `db:"id" json:"-"`
	TrainNo         string  `db:"train_no" json:"trainNo"`
	TrainType       string  `db:"train_type" json:"trainType"`
	FromStationID   int64   `db:"from_station_id" json:"-"`
	ToStationID     int64   `db:"to_station_id" json:"-"`
	FromStation     string  `db:"from_station" json:"fromStation"`
	ToStation       string  `db:"to_station" json:"toStation"`
	RunDate         string  `db:"run_date" json:"date"`
	DepartureTime   string  `db:"departure_time" json:"departureTime"`
	ArrivalTime     string  `db:"arrival_time" json:"arrivalTime"`
	DurationMinutes int     `db:"duration_minutes" json:"-"`
	BatchID         *string `db:"batch_id" json:"-"`
}

// Validate checks the row before it is written
func (r *ScheduleRow) Validate() error {
	if r.TrainNo == "" {
		return errors.New("train_no is required")
	}
	if len(r.TrainType) != 1 {
		return fmt.Errorf("train_type must be a single letter, got %q", r.TrainType)
	}
	if !strings.HasPrefix(r.TrainNo, r.TrainType) {
		return fmt.Errorf("train_no %s does not start with train_type %s", r.TrainNo, r.TrainType)
	}
	if _, err := time.Parse(DateLayout, r.RunDate); err != nil {
		return fmt.Errorf("invalid run_date %q: %w", r.RunDate, err)
	}
	if _, err := time.Parse(ClockLayout, r.DepartureTime); err != nil {
		return fmt.Errorf("invalid departure_time %q: %w", r.DepartureTime, err)
	}
	if _, err := time.Parse(ClockLayout, r.ArrivalTime); err != nil {
		return fmt.Errorf("invalid arrival_time %q: %w", r.ArrivalTime, err)
	}
	if r.DurationMinutes <= 0 {
		return errors.New("duration_minutes must be positive")
	}
	return nil
}

// ArrivesNextDay reports whether arrival is on the following day.
// Arrival at or before departure within the same clock day means next day.
func (r *ScheduleRow) ArrivesNextDay() bool {
	return r.ArrivalTime <= r.DepartureTime
}

// ArrivalType is the display label for same-day vs next-day arrival
func (r *ScheduleRow) ArrivalType() string {
	if r.ArrivesNextDay() {
		return ArrivalNextDay
	}
	return ArrivalSameDay
}

// FormatDuration renders minutes as "2小时05分钟"
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d小时%02d分钟", minutes/60, minutes%60)
}

// ParseDuration accepts "2小时05分钟", "2小时", "45分钟" or a bare minute count
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	var hours, minutes int
	if _, err := fmt.Sscanf(s, "%d小时%d分钟", &hours, &minutes); err == nil {
		return hours*60 + minutes, nil
	}
	if _, err := fmt.Sscanf(s, "%d小时", &hours); err == nil && strings.HasSuffix(s, "小时") {
		return hours * 60, nil
	}
	if _, err := fmt.Sscanf(s, "%d分钟", &minutes); err == nil && strings.HasSuffix(s, "分钟") {
		return minutes, nil
	}
	if _, err := fmt.Sscanf(s, "%d", &minutes); err == nil && !strings.ContainsAny(s, "小时分钟") {
		return minutes, nil
	}
	return 0, fmt.Errorf("unrecognized duration %q", s)
}

// DurationBetween computes minutes from departure to arrival, rolling the
// arrival into the next day when it is not after departure.
func DurationBetween(departure, arrival string) (int, error) {
	dep, err := time.Parse(ClockLayout, departure)
	if err != nil {
		return 0, fmt.Errorf("invalid departure %q: %w", departure, err)
	}
	arr, err := time.Parse(ClockLayout, arrival)
	if err != nil {
		return 0, fmt.Errorf("invalid arrival %q: %w", arrival, err)
	}
	if !arr.After(dep) {
		arr = arr.Add(24 * time.Hour)
	}
	return int(arr.Sub(dep).Minutes()), nil
}
