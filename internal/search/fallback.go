package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/you/railticket/internal/metrics"
	"github.com/you/railticket/internal/models"
	"github.com/you/railticket/internal/repository"
)

const (
	// fallbackTrainBase offsets synthetic train numbers away from seeded ones
	fallbackTrainBase = 7000

	fallbackFirstDeparture = 6 * 60 // 06:00
	fallbackDepartureStep  = 95     // minutes between departures
	fallbackBaseDuration   = 60
	fallbackDurationStep   = 45
)

// fallbackTypes is the category cycle of a synthetic batch
var fallbackTypes = []string{"G", "D", "K", "T"}

// FallbackStore is the storage the generator writes to
type FallbackStore interface {
	InsertFallbackBatch(ctx context.Context, batch repository.FallbackBatch, build repository.BatchBuilder) (int, error)
}

// Generator fills empty route/date combinations with synthetic trains.
// Generation is single-flight per (from, to, date): concurrent callers for
// the same key wait for and share one outcome, and the store re-checks the
// route under its write lock so a late caller never adds a second batch.
type Generator struct {
	store     FallbackStore
	batchSize int
	group     singleflight.Group
	log       *zap.Logger
	now       func() time.Time
}

// NewGenerator creates a Generator writing batchSize rows per batch
func NewGenerator(store FallbackStore, batchSize int, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Generator{
		store:     store,
		batchSize: batchSize,
		log:       log.Named("fallback"),
		now:       time.Now,
	}
}

// EnsureNonEmpty writes a synthetic batch for the route/date if it has no
// rows. It returns the number of rows inserted, 0 when the route already
// had data.
func (g *Generator) EnsureNonEmpty(ctx context.Context, fromID, toID int64, date string) (int, error) {
	key := fmt.Sprintf("%d|%d|%s", fromID, toID, date)

	// the flight outlives the caller that started it; waiters share its result
	flightCtx := context.WithoutCancel(ctx)

	v, err, shared := g.group.Do(key, func() (interface{}, error) {
		batchID := uuid.NewString()
		batch := repository.FallbackBatch{
			ID:            batchID,
			FromStationID: fromID,
			ToStationID:   toID,
			RunDate:       date,
			CreatedAt:     g.now(),
		}

		n, err := g.store.InsertFallbackBatch(flightCtx, batch, func(block int) []models.ScheduleRow {
			return BuildFallbackRows(fromID, toID, date, batchID, block, g.batchSize)
		})
		metrics.IncFallback(n > 0, err)
		if err != nil {
			return 0, fmt.Errorf("failed to generate fallback batch: %w", err)
		}

		if n > 0 {
			g.log.Info("fallback batch generated",
				zap.Int64("from", fromID),
				zap.Int64("to", toID),
				zap.String("date", date),
				zap.String("batch", batchID),
				zap.Int("rows", n),
			)
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}

	if shared {
		g.log.Debug("fallback result shared", zap.String("key", key))
	}
	return v.(int), nil
}

// BuildFallbackRows returns the rows of one synthetic batch. Row i has
// category fallbackTypes[i%4], departs 95 minutes after row i-1 starting at
// 06:00, and runs 60 + (i%5)*45 minutes. Train numbers come from numbering
// block: 7000 + block*size + i.
func BuildFallbackRows(fromID, toID int64, date, batchID string, block, size int) []models.ScheduleRow {
	rows := make([]models.ScheduleRow, 0, size)
	for i := 0; i < size; i++ {
		trainType := fallbackTypes[i%len(fallbackTypes)]
		dep := fallbackFirstDeparture + i*fallbackDepartureStep
		dur := fallbackBaseDuration + (i%5)*fallbackDurationStep

		id := batchID
		rows = append(rows, models.ScheduleRow{
			TrainNo:         trainType + strconv.Itoa(fallbackTrainBase+block*size+i),
			TrainType:       trainType,
			FromStationID:   fromID,
			ToStationID:     toID,
			RunDate:         date,
			DepartureTime:   clock(dep),
			ArrivalTime:     clock(dep + dur),
			DurationMinutes: dur,
			BatchID:         &id,
		})
	}
	return rows
}

// clock renders minutes after midnight as HH:MM, wrapping past 24h
func clock(minutes int) string {
	minutes %= 24 * 60
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
