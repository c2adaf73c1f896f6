// Command seed loads schedule rows, cities and stations into the ticket store.
//
//	seed --schedule schedules.csv --cities cities.csv --station 雄安 --station 白洋淀
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/you/railticket/internal/db"
	"github.com/you/railticket/internal/logger"
	"github.com/you/railticket/internal/models"
	"github.com/you/railticket/internal/repository"
)

func main() {
	var (
		dbPath       = pflag.String("db", "../../data/tickets.db", "SQLite path or Postgres URL")
		driver       = pflag.String("driver", "sqlite", "Database driver: sqlite or postgres")
		scheduleFile = pflag.String("schedule", "", "CSV of trainNo,type,from,to,date,dep,arr[,duration]")
		cityFile     = pflag.String("cities", "", "CSV of name,adminCode,areaCode,postalCode,lat,lng,hot,rank")
		stationNames = pflag.StringArray("station", nil, "Station name to provision (repeatable)")
		logLevel     = pflag.String("log-level", "info", "Log level")
	)
	pflag.Parse()

	log := logger.New(*logLevel)
	defer log.Sync()

	database, err := db.Open(*driver, *dbPath, log)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatal("failed to ensure schema", zap.Error(err))
	}

	stationRepo := repository.NewStationRepository(database)
	s := &seeder{
		stations:  stationRepo,
		schedules: repository.NewScheduleRepository(database),
		cities:    repository.NewCityRepository(database),
		ids:       map[string]int64{},
		log:       log,
	}

	for _, name := range *stationNames {
		st, err := s.station(ctx, name)
		if err != nil {
			log.Fatal("failed to provision station", zap.String("name", name), zap.Error(err))
		}
		log.Info("station provisioned", zap.String("name", name), zap.Int64("id", st))
	}

	if *scheduleFile != "" {
		n, err := s.loadFile(ctx, *scheduleFile, s.scheduleRecord)
		if err != nil {
			log.Fatal("failed to seed schedules", zap.Error(err))
		}
		log.Info("schedules seeded", zap.Int("rows", n))
	}

	if *cityFile != "" {
		n, err := s.loadFile(ctx, *cityFile, s.cityRecord)
		if err != nil {
			log.Fatal("failed to seed cities", zap.Error(err))
		}
		log.Info("cities seeded", zap.Int("rows", n))
	}
}

type seeder struct {
	stations  *repository.StationRepository
	schedules *repository.ScheduleRepository
	cities    *repository.CityRepository
	ids       map[string]int64
	log       *zap.Logger
}

// station returns the id for a station name, creating it with its derived city
func (s *seeder) station(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if id, ok := s.ids[name]; ok {
		return id, nil
	}
	st, err := s.stations.CreateStation(ctx, name, models.DeriveCity(name))
	if err != nil {
		return 0, err
	}
	s.ids[name] = st.ID
	return st.ID, nil
}

// loadFile feeds every CSV record to handle. Lines starting with '#' and a
// header row whose first cell is not data are skipped by the handlers.
func (s *seeder) loadFile(ctx context.Context, path string, handle func(context.Context, []string) (bool, error)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	n := 0
	for line := 1; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		ok, err := handle(ctx, record)
		if err != nil {
			return n, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *seeder) scheduleRecord(ctx context.Context, record []string) (bool, error) {
	if isHeader(record, "trainNo") {
		return false, nil
	}
	row, from, to, err := parseScheduleRecord(record)
	if err != nil {
		return false, err
	}
	if row.FromStationID, err = s.station(ctx, from); err != nil {
		return false, err
	}
	if row.ToStationID, err = s.station(ctx, to); err != nil {
		return false, err
	}
	if err := s.schedules.InsertSchedule(ctx, row); err != nil {
		return false, err
	}
	return true, nil
}

func (s *seeder) cityRecord(ctx context.Context, record []string) (bool, error) {
	if isHeader(record, "name") {
		return false, nil
	}
	c, err := parseCityRecord(record)
	if err != nil {
		return false, err
	}
	if err := s.cities.UpsertCity(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

func isHeader(record []string, first string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), first)
}

// parseScheduleRecord reads trainNo,type,from,to,date,dep,arr[,duration].
// A missing duration is computed from the clock times.
func parseScheduleRecord(record []string) (models.ScheduleRow, string, string, error) {
	if len(record) < 7 {
		return models.ScheduleRow{}, "", "", fmt.Errorf("expected at least 7 fields, got %d", len(record))
	}
	f := trimAll(record)

	row := models.ScheduleRow{
		TrainNo:       f[0],
		TrainType:     strings.ToUpper(f[1]),
		RunDate:       f[4],
		DepartureTime: f[5],
		ArrivalTime:   f[6],
	}

	var err error
	if len(f) > 7 && f[7] != "" {
		row.DurationMinutes, err = models.ParseDuration(f[7])
	} else {
		row.DurationMinutes, err = models.DurationBetween(row.DepartureTime, row.ArrivalTime)
	}
	if err != nil {
		return models.ScheduleRow{}, "", "", err
	}

	if err := row.Validate(); err != nil {
		return models.ScheduleRow{}, "", "", err
	}
	return row, f[2], f[3], nil
}

// parseCityRecord reads name,adminCode,areaCode,postalCode,lat,lng,hot,rank
// and fills the phonetic keys from the name.
func parseCityRecord(record []string) (models.City, error) {
	if len(record) < 8 {
		return models.City{}, fmt.Errorf("expected 8 fields, got %d", len(record))
	}
	f := trimAll(record)

	c := models.City{
		Name:       f[0],
		AdminCode:  f[1],
		AreaCode:   f[2],
		PostalCode: f[3],
	}
	c.Pinyin, c.PinyinInitials = phoneticKeys(c.Name)

	var err error
	if c.Lat, err = optionalFloat(f[4]); err != nil {
		return models.City{}, fmt.Errorf("invalid lat: %w", err)
	}
	if c.Lng, err = optionalFloat(f[5]); err != nil {
		return models.City{}, fmt.Errorf("invalid lng: %w", err)
	}
	if f[6] != "" {
		if c.IsHot, err = strconv.ParseBool(f[6]); err != nil {
			return models.City{}, fmt.Errorf("invalid hot flag: %w", err)
		}
	}
	if f[7] != "" {
		if c.Rank, err = strconv.Atoi(f[7]); err != nil {
			return models.City{}, fmt.Errorf("invalid rank: %w", err)
		}
	}
	return c, nil
}

// phoneticKeys returns the full pinyin ("beijing") and its initials ("bj")
func phoneticKeys(name string) (string, string) {
	args := pinyin.NewArgs()
	full := pinyin.LazyPinyin(name, args)

	args.Style = pinyin.FirstLetter
	initials := pinyin.LazyPinyin(name, args)

	return strings.Join(full, ""), strings.Join(initials, "")
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func trimAll(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
