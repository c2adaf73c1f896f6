// Package search plans ticket queries against the schedule store, fills empty
// routes with fallback trains and shapes results for flat and tabular views.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/you/railticket/internal/cache"
	"github.com/you/railticket/internal/metrics"
	"github.com/you/railticket/internal/models"
	"github.com/you/railticket/internal/repository"
	"github.com/you/railticket/internal/seats"
)

// StationResolver maps free-text input onto station ids
type StationResolver interface {
	Resolve(ctx context.Context, input string) ([]int64, error)
}

// ScheduleStore is the read side of the schedule repository
type ScheduleStore interface {
	CountSchedules(ctx context.Context, f repository.ScheduleFilter) (int, error)
	FetchSchedules(ctx context.Context, f repository.ScheduleFilter, sort models.SortKey, limit, offset int) ([]models.ScheduleRow, error)
	DistinctStations(ctx context.Context, f repository.ScheduleFilter) ([]string, []string, error)
}

// Fallback guarantees a fully specified route/date has rows
type Fallback interface {
	EnsureNonEmpty(ctx context.Context, fromID, toID int64, date string) (int, error)
}

// Options tunes pagination
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Engine runs flat and aggregated ticket searches
type Engine struct {
	resolver   StationResolver
	store      ScheduleStore
	fallback   Fallback
	tickets    *cache.Cache[*models.TicketPage]
	aggregated *cache.Cache[*models.AggregatedPage]
	opts       Options
	log        *zap.Logger
}

// NewEngine wires an Engine. Both caches should use the StaleEmpty policy.
func NewEngine(
	resolver StationResolver,
	store ScheduleStore,
	fallback Fallback,
	tickets *cache.Cache[*models.TicketPage],
	aggregated *cache.Cache[*models.AggregatedPage],
	opts Options,
	log *zap.Logger,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 10
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	return &Engine{
		resolver:   resolver,
		store:      store,
		fallback:   fallback,
		tickets:    tickets,
		aggregated: aggregated,
		opts:       opts,
		log:        log.Named("search"),
	}
}

// Search returns one page of the flat ticket list
func (e *Engine) Search(ctx context.Context, q models.TicketQuery) (*models.TicketPage, error) {
	start := time.Now()
	defer func() { metrics.ObserveSearch(metrics.CacheTickets, time.Since(start)) }()

	q = e.normalize(q)
	key := queryKey(q)
	if page, ok := e.tickets.Get(key); ok {
		return page, nil
	}

	f, total, err := e.plan(ctx, q)
	if err != nil {
		return nil, err
	}

	rows, err := e.fetch(ctx, q, f, total)
	if err != nil {
		return nil, err
	}

	data := make([]models.Ticket, 0, len(rows))
	for i, row := range rows {
		// the page position is the seat sequence index on every path
		offerings := seats.Offerings(row.TrainType, i)
		if !offersAny(offerings, q.SeatTypes) {
			continue
		}
		data = append(data, models.Ticket{
			TrainNo:       row.TrainNo,
			TrainType:     row.TrainType,
			FromStation:   row.FromStation,
			ToStation:     row.ToStation,
			Date:          row.RunDate,
			DepartureTime: row.DepartureTime,
			ArrivalTime:   row.ArrivalTime,
			Duration:      models.FormatDuration(row.DurationMinutes),
			ArrivalType:   row.ArrivalType(),
			Seats:         offerings,
		})
	}

	if q.Sort == models.SortPriceAsc {
		category := priceCategory(q.SeatTypes)
		sort.SliceStable(data, func(i, j int) bool {
			return offeringPrice(data[i].Seats, category) < offeringPrice(data[j].Seats, category)
		})
	}

	page := &models.TicketPage{
		Meta: models.NewPageMeta(total, q.Page, q.PageSize),
		Data: data,
	}
	e.tickets.Put(key, page)
	return page, nil
}

// normalize applies pagination defaults and trims free-text fields
func (e *Engine) normalize(q models.TicketQuery) models.TicketQuery {
	q.From = strings.TrimSpace(q.From)
	q.To = strings.TrimSpace(q.To)
	q.Date = strings.TrimSpace(q.Date)
	if q.Sort == "" {
		q.Sort = models.SortDepartureAsc
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = e.opts.DefaultPageSize
	}
	if q.PageSize > e.opts.MaxPageSize {
		q.PageSize = e.opts.MaxPageSize
	}
	return q
}

// plan resolves stations, builds the filter and counts matches, running
// fallback generation once when a fully specified route/date is empty.
func (e *Engine) plan(ctx context.Context, q models.TicketQuery) (repository.ScheduleFilter, int, error) {
	fromIDs, err := e.resolver.Resolve(ctx, q.From)
	if err != nil {
		return repository.ScheduleFilter{}, 0, fmt.Errorf("failed to resolve origin: %w", err)
	}
	toIDs, err := e.resolver.Resolve(ctx, q.To)
	if err != nil {
		return repository.ScheduleFilter{}, 0, fmt.Errorf("failed to resolve destination: %w", err)
	}

	f := repository.ScheduleFilter{
		FromIDs:    fromIDs,
		ToIDs:      toIDs,
		Date:       q.Date,
		TrainTypes: q.TrainTypes,
		DepStart:   q.DepStart,
		DepEnd:     q.DepEnd,
		FromNames:  q.FromStations,
		ToNames:    q.ToStations,
	}

	total, err := e.store.CountSchedules(ctx, f)
	if err != nil {
		return f, 0, err
	}

	if total == 0 && q.FullySpecified() && len(fromIDs) > 0 && len(toIDs) > 0 && e.fallback != nil {
		// recount even when this caller inserted nothing: another request
		// may have generated the batch in the meantime
		if _, err := e.fallback.EnsureNonEmpty(ctx, fromIDs[0], toIDs[0], q.Date); err != nil {
			return f, 0, err
		}
		if total, err = e.store.CountSchedules(ctx, f); err != nil {
			return f, 0, err
		}
	}

	e.log.Debug("query planned",
		zap.String("from", q.From),
		zap.String("to", q.To),
		zap.String("date", q.Date),
		zap.Int("total", total),
	)
	return f, total, nil
}

func (e *Engine) fetch(ctx context.Context, q models.TicketQuery, f repository.ScheduleFilter, total int) ([]models.ScheduleRow, error) {
	if total == 0 {
		return nil, nil
	}
	return e.store.FetchSchedules(ctx, f, q.Sort, q.PageSize, (q.Page-1)*q.PageSize)
}

// queryKey is the cache key of a normalized query. Set-valued parameters
// are sorted so equivalent requests share an entry.
func queryKey(q models.TicketQuery) string {
	return cache.Key(
		q.From,
		q.To,
		q.Date,
		sortedJoin(q.TrainTypes),
		q.DepStart,
		q.DepEnd,
		sortedJoin(q.SeatTypes),
		string(q.Sort),
		strconv.Itoa(q.Page),
		strconv.Itoa(q.PageSize),
		sortedJoin(q.FromStations),
		sortedJoin(q.ToStations),
	)
}

func sortedJoin(values []string) string {
	if len(values) == 0 {
		return ""
	}
	s := append([]string(nil), values...)
	sort.Strings(s)
	return strings.Join(s, ",")
}

// offersAny reports whether a train has any of the requested categories.
// An empty request keeps every train.
func offersAny(offerings []models.SeatOffering, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if seats.Has(offerings, c) {
			return true
		}
	}
	return false
}

// priceCategory is the seat category price sorting compares
func priceCategory(seatTypes []string) string {
	if len(seatTypes) > 0 && seatTypes[0] != "" {
		return seatTypes[0]
	}
	return seats.DefaultPriceCategory
}

// offeringPrice returns the category price, or math.MaxInt so unpriced
// trains sort last.
func offeringPrice(offerings []models.SeatOffering, category string) int {
	if p, ok := seats.PriceOf(offerings, category); ok {
		return p
	}
	return math.MaxInt
}
