package search

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/you/railticket/internal/metrics"
	"github.com/you/railticket/internal/models"
	"github.com/you/railticket/internal/seats"
)

// SearchAggregated returns one page of the tabular ticket list with a fixed
// seat matrix per train and facet lists over the whole match set.
func (e *Engine) SearchAggregated(ctx context.Context, q models.TicketQuery) (*models.AggregatedPage, error) {
	start := time.Now()
	defer func() { metrics.ObserveSearch(metrics.CacheAggregated, time.Since(start)) }()

	q = e.normalize(q)
	key := queryKey(q)
	if page, ok := e.aggregated.Get(key); ok {
		return page, nil
	}

	f, total, err := e.plan(ctx, q)
	if err != nil {
		return nil, err
	}

	fromNames, toNames, err := e.store.DistinctStations(ctx, f)
	if err != nil {
		return nil, err
	}

	rows, err := e.fetch(ctx, q, f, total)
	if err != nil {
		return nil, err
	}

	data := make([]models.TicketRow, 0, len(rows))
	for i, row := range rows {
		matrix := seats.Matrix(row.TrainType, i)
		if !matrixHasAny(matrix, q.SeatTypes) {
			continue
		}
		data = append(data, models.TicketRow{
			TrainNo:       row.TrainNo,
			TrainType:     row.TrainType,
			FromStation:   row.FromStation,
			ToStation:     row.ToStation,
			Date:          row.RunDate,
			DepartureTime: row.DepartureTime,
			ArrivalTime:   row.ArrivalTime,
			Duration:      models.FormatDuration(row.DurationMinutes),
			ArrivalType:   row.ArrivalType(),
			Seats:         matrix,
		})
	}

	if q.Sort == models.SortPriceAsc {
		category := priceCategory(q.SeatTypes)
		sort.SliceStable(data, func(i, j int) bool {
			return cellPrice(data[i].Seats, category) < cellPrice(data[j].Seats, category)
		})
	}

	page := &models.AggregatedPage{
		Meta: models.NewPageMeta(total, q.Page, q.PageSize),
		Filters: models.Facets{
			DepartureStations: nonNil(fromNames),
			ArrivalStations:   nonNil(toNames),
			SeatTypes:         seats.Canonical(),
		},
		Data: data,
	}
	e.aggregated.Put(key, page)
	return page, nil
}

// matrixHasAny reports whether any requested category is offered
func matrixHasAny(matrix map[string]models.SeatCell, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if cell, ok := matrix[c]; ok && cell.Status != seats.StatusAbsent {
			return true
		}
	}
	return false
}

func cellPrice(matrix map[string]models.SeatCell, category string) int {
	if cell, ok := matrix[category]; ok && cell.Price != nil {
		return *cell.Price
	}
	return math.MaxInt
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
