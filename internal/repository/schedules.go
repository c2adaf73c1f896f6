package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/you/railticket/internal/db"
	"github.com/you/railticket/internal/models"
)

// ScheduleFilter is the storage-side predicate of a ticket search
type ScheduleFilter struct {
	FromIDs    []int64
	ToIDs      []int64
	Date       string
	TrainTypes []string
	DepStart   string
	DepEnd     string

	// Optional station-name restrictions (aggregated search)
	FromNames []string
	ToNames   []string
}

// FallbackBatch records one synthetic batch written for an empty route/date
type FallbackBatch struct {
	ID            string
	FromStationID int64
	ToStationID   int64
	RunDate       string
	TrainCount    int
	CreatedAt     time.Time
}

// ScheduleRepository handles database operations for schedule rows
type ScheduleRepository struct {
	db *db.DB
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(database *db.DB) *ScheduleRepository {
	return &ScheduleRepository{db: database}
}

const scheduleFrom = `
		FROM schedule_rows s
		JOIN stations fs ON fs.id = s.from_station_id
		JOIN stations ts ON ts.id = s.to_station_id
`

// where builds the WHERE clause for a filter. An empty id set matches nothing.
func (f ScheduleFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)

	conds = append(conds, "s.run_date = ?")
	args = append(args, f.Date)

	conds = append(conds, "s.from_station_id IN ("+placeholders(len(f.FromIDs))+")")
	for _, id := range f.FromIDs {
		args = append(args, id)
	}
	conds = append(conds, "s.to_station_id IN ("+placeholders(len(f.ToIDs))+")")
	for _, id := range f.ToIDs {
		args = append(args, id)
	}

	if len(f.TrainTypes) > 0 {
		conds = append(conds, "s.train_type IN ("+placeholders(len(f.TrainTypes))+")")
		for _, t := range f.TrainTypes {
			args = append(args, t)
		}
	}
	if f.DepStart != "" {
		conds = append(conds, "s.departure_time >= ?")
		args = append(args, f.DepStart)
	}
	if f.DepEnd != "" {
		conds = append(conds, "s.departure_time <= ?")
		args = append(args, f.DepEnd)
	}
	if len(f.FromNames) > 0 {
		conds = append(conds, "fs.name IN ("+placeholders(len(f.FromNames))+")")
		for _, n := range f.FromNames {
			args = append(args, n)
		}
	}
	if len(f.ToNames) > 0 {
		conds = append(conds, "ts.name IN ("+placeholders(len(f.ToNames))+")")
		for _, n := range f.ToNames {
			args = append(args, n)
		}
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// withoutStationNames drops the station-name restrictions (facet scope)
func (f ScheduleFilter) withoutStationNames() ScheduleFilter {
	f.FromNames = nil
	f.ToNames = nil
	return f
}

// placeholders returns "?, ?, ?" for n > 0 and "NULL" for n == 0 so that
// "x IN (NULL)" matches nothing.
func placeholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// orderBy maps a sort key onto storage order. Price sorting is not pushed
// down: it orders by departure here and is re-sorted after synthesis.
func orderBy(sort models.SortKey) string {
	switch sort {
	case models.SortDurationAsc:
		return " ORDER BY s.duration_minutes, s.departure_time, s.train_no"
	default:
		return " ORDER BY s.departure_time, s.train_no"
	}
}

// CountSchedules returns the number of rows matching the filter
func (r *ScheduleRepository) CountSchedules(ctx context.Context, f ScheduleFilter) (int, error) {
	where, args := f.where()
	query := r.db.Rebind("SELECT COUNT(*)" + scheduleFrom + where)

	var n int
	if err := r.db.Conn().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return n, nil
}

// FetchSchedules returns one page of matching rows in storage order
func (r *ScheduleRepository) FetchSchedules(ctx context.Context, f ScheduleFilter, sort models.SortKey, limit, offset int) ([]models.ScheduleRow, error) {
	where, args := f.where()
	query := `
		SELECT
			s.id,
			s.train_no,
			s.train_type,
			s.from_station_id,
			s.to_station_id,
			fs.name,
			ts.name,
			s.run_date,
			s.departure_time,
			s.arrival_time,
			s.duration_minutes,
			s.batch_id
	` + scheduleFrom + where + orderBy(sort) + " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Conn().QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var out []models.ScheduleRow
	for rows.Next() {
		var s models.ScheduleRow
		var batchID sql.NullString
		if err := rows.Scan(
			&s.ID,
			&s.TrainNo,
			&s.TrainType,
			&s.FromStationID,
			&s.ToStationID,
			&s.FromStation,
			&s.ToStation,
			&s.RunDate,
			&s.DepartureTime,
			&s.ArrivalTime,
			&s.DurationMinutes,
			&batchID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		if batchID.Valid {
			s.BatchID = &batchID.String
		}
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}

	return out, nil
}

// DistinctStations returns the sorted distinct departure and arrival station
// names across the whole (unpaginated) match set. Station-name restrictions
// are ignored so the facet lists always offer every choice.
func (r *ScheduleRepository) DistinctStations(ctx context.Context, f ScheduleFilter) ([]string, []string, error) {
	where, args := f.withoutStationNames().where()

	from, err := r.distinct(ctx, "fs.name", where, args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list departure stations: %w", err)
	}
	to, err := r.distinct(ctx, "ts.name", where, args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list arrival stations: %w", err)
	}
	return from, to, nil
}

func (r *ScheduleRepository) distinct(ctx context.Context, column, where string, args []any) ([]string, error) {
	query := r.db.Rebind("SELECT DISTINCT " + column + scheduleFrom + where + " ORDER BY " + column)

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// InsertSchedule writes a single seeded row
func (r *ScheduleRepository) InsertSchedule(ctx context.Context, row models.ScheduleRow) error {
	if err := row.Validate(); err != nil {
		return err
	}

	r.db.LockWrite()
	defer r.db.UnlockWrite()

	if _, err := r.db.Conn().ExecContext(ctx, r.db.Rebind(insertScheduleSQL), scheduleArgs(row)...); err != nil {
		return fmt.Errorf("failed to insert schedule %s: %w", row.TrainNo, err)
	}
	return nil
}

const insertScheduleSQL = `
	INSERT INTO schedule_rows (
		train_no, train_type, from_station_id, to_station_id, run_date,
		departure_time, arrival_time, duration_minutes, batch_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func scheduleArgs(row models.ScheduleRow) []any {
	var batchID any
	if row.BatchID != nil {
		batchID = *row.BatchID
	}
	return []any{
		row.TrainNo, row.TrainType, row.FromStationID, row.ToStationID, row.RunDate,
		row.DepartureTime, row.ArrivalTime, row.DurationMinutes, batchID,
	}
}

// BatchBuilder produces the rows of a fallback batch for a numbering block.
// Distinct blocks must yield distinct train numbers.
type BatchBuilder func(block int) []models.ScheduleRow

// maxBlockProbes bounds how many numbering blocks a batch skips over when
// its train numbers are already taken.
const maxBlockProbes = 1000

// InsertFallbackBatch atomically records a batch and its rows. The batch is
// skipped (and 0 returned) if the route/date already has rows when the
// write lock is held.
func (r *ScheduleRepository) InsertFallbackBatch(ctx context.Context, batch FallbackBatch, build BatchBuilder) (int, error) {
	r.db.LockWrite()
	defer r.db.UnlockWrite()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin fallback transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx,
		r.db.Rebind(`SELECT COUNT(*) FROM schedule_rows WHERE run_date = ? AND from_station_id = ? AND to_station_id = ?`),
		batch.RunDate, batch.FromStationID, batch.ToStationID,
	).Scan(&existing)
	if err != nil {
		return 0, fmt.Errorf("failed to recount route: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	var prior int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM fallback_batches`).Scan(&prior); err != nil {
		return 0, fmt.Errorf("failed to count fallback batches: %w", err)
	}

	// start after the recorded batches and move past any block whose
	// numbers collide with stored trains (seeded or earlier batches)
	var rows []models.ScheduleRow
	for block := prior; ; block++ {
		if block-prior >= maxBlockProbes {
			return 0, fmt.Errorf("no free train numbers after %d blocks", maxBlockProbes)
		}
		rows = build(block)
		if len(rows) == 0 {
			return 0, errors.New("fallback batch is empty")
		}
		taken, err := r.anyTrainNoTaken(ctx, tx, rows)
		if err != nil {
			return 0, err
		}
		if !taken {
			break
		}
	}

	_, err = tx.ExecContext(ctx,
		r.db.Rebind(`INSERT INTO fallback_batches (id, from_station_id, to_station_id, run_date, train_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		batch.ID, batch.FromStationID, batch.ToStationID, batch.RunDate, len(rows), batch.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fallback batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(insertScheduleSQL))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare schedule insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return 0, fmt.Errorf("invalid fallback row %s: %w", row.TrainNo, err)
		}
		if _, err := stmt.ExecContext(ctx, scheduleArgs(row)...); err != nil {
			return 0, fmt.Errorf("failed to insert fallback row %s: %w", row.TrainNo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit fallback batch: %w", err)
	}
	return len(rows), nil
}

// anyTrainNoTaken reports whether any row's train number is already stored
func (r *ScheduleRepository) anyTrainNoTaken(ctx context.Context, tx *sql.Tx, rows []models.ScheduleRow) (bool, error) {
	args := make([]any, len(rows))
	for i, row := range rows {
		args[i] = row.TrainNo
	}

	var n int
	err := tx.QueryRowContext(ctx,
		r.db.Rebind("SELECT COUNT(*) FROM schedule_rows WHERE train_no IN ("+placeholders(len(rows))+")"),
		args...,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check train numbers: %w", err)
	}
	return n > 0, nil
}

// CountFallbackBatches returns how many synthetic batches exist for a route/date
func (r *ScheduleRepository) CountFallbackBatches(ctx context.Context, fromID, toID int64, date string) (int, error) {
	var n int
	err := r.db.Conn().QueryRowContext(ctx,
		r.db.Rebind(`SELECT COUNT(*) FROM fallback_batches WHERE from_station_id = ? AND to_station_id = ? AND run_date = ?`),
		fromID, toID, date,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count fallback batches: %w", err)
	}
	return n, nil
}
