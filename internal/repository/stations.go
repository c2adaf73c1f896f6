package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/you/railticket/internal/db"
	"github.com/you/railticket/internal/models"
)

// StationRepository handles database operations for stations
type StationRepository struct {
	db *db.DB
}

// NewStationRepository creates a new StationRepository
func NewStationRepository(database *db.DB) *StationRepository {
	return &StationRepository{db: database}
}

// ListStations returns every station ordered by id
func (r *StationRepository) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `SELECT id, name, city FROM stations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var s models.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.City); err != nil {
			return nil, fmt.Errorf("failed to scan station row: %w", err)
		}
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating station rows: %w", err)
	}

	return stations, nil
}

// GetStationByName returns a station by its exact name
func (r *StationRepository) GetStationByName(ctx context.Context, name string) (*models.Station, error) {
	if name == "" {
		return nil, errors.New("station name cannot be empty")
	}

	var s models.Station
	err := r.db.Conn().QueryRowContext(ctx,
		r.db.Rebind(`SELECT id, name, city FROM stations WHERE name = ?`), name,
	).Scan(&s.ID, &s.Name, &s.City)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to query station: %w", err)
	}
	return &s, nil
}

// CreateStation inserts a station, returning the existing row when the
// name is already taken.
func (r *StationRepository) CreateStation(ctx context.Context, name, city string) (*models.Station, error) {
	s := models.Station{Name: strings.TrimSpace(name), City: strings.TrimSpace(city)}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	r.db.LockWrite()
	_, err := r.db.Conn().ExecContext(ctx,
		r.db.Rebind(`INSERT INTO stations (name, city) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`),
		s.Name, s.City,
	)
	r.db.UnlockWrite()
	if err != nil {
		return nil, fmt.Errorf("failed to insert station: %w", err)
	}

	return r.GetStationByName(ctx, s.Name)
}
