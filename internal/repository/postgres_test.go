package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/you/railticket/internal/db"
	"github.com/you/railticket/internal/models"
)

func setupPostgres(t *testing.T) *db.DB {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set - skipping integration test")
	}

	database, err := db.Open("postgres", databaseURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to Postgres: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("Failed to ensure schema: %v", err)
	}
	return database
}

func TestPostgres_ScheduleRoundTrip(t *testing.T) {
	database := setupPostgres(t)
	ctx := context.Background()
	stations := NewStationRepository(database)
	schedules := NewScheduleRepository(database)

	// unique names keep reruns against a shared database independent
	suffix := fmt.Sprint(time.Now().UnixNano())
	from, err := stations.CreateStation(ctx, "测试甲"+suffix, "测试甲")
	if err != nil {
		t.Fatalf("CreateStation failed: %v", err)
	}
	to, err := stations.CreateStation(ctx, "测试乙"+suffix, "测试乙")
	if err != nil {
		t.Fatalf("CreateStation failed: %v", err)
	}

	row := models.ScheduleRow{
		TrainNo:         "Z" + suffix,
		TrainType:       "Z",
		FromStationID:   from.ID,
		ToStationID:     to.ID,
		RunDate:         "2026-10-16",
		DepartureTime:   "08:00",
		ArrivalTime:     "09:30",
		DurationMinutes: 90,
	}
	if err := schedules.InsertSchedule(ctx, row); err != nil {
		t.Fatalf("InsertSchedule failed: %v", err)
	}

	f := ScheduleFilter{FromIDs: []int64{from.ID}, ToIDs: []int64{to.ID}, Date: row.RunDate, TrainTypes: []string{"Z"}}
	rows, err := schedules.FetchSchedules(ctx, f, models.SortDepartureAsc, 10, 0)
	if err != nil {
		t.Fatalf("FetchSchedules failed: %v", err)
	}
	if len(rows) != 1 || rows[0].TrainNo != row.TrainNo {
		t.Errorf("rows = %+v", rows)
	}

	cities := NewCityRepository(database)
	if _, _, err := cities.SearchCities(ctx, "bj", 10, 0); err != nil {
		t.Errorf("SearchCities failed: %v", err)
	}
}
