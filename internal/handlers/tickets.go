package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/you/railticket/internal/models"
)

// TicketSearcher defines the search operations the ticket endpoints need
type TicketSearcher interface {
	Search(ctx context.Context, q models.TicketQuery) (*models.TicketPage, error)
	SearchAggregated(ctx context.Context, q models.TicketQuery) (*models.AggregatedPage, error)
}

// TicketHandler handles HTTP requests for ticket searches
type TicketHandler struct {
	search TicketSearcher
	log    *zap.Logger
}

// NewTicketHandler creates a new handler with the given search engine
func NewTicketHandler(search TicketSearcher, log *zap.Logger) *TicketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TicketHandler{search: search, log: log.Named("tickets")}
}

// SearchTickets handles GET /v1/tickets
// Required: fromStation, toStation, date. Optional: trainTypes (csv),
// sortBy, page, pageSize, depStart, depEnd, seatType.
func (h *TicketHandler) SearchTickets(w http.ResponseWriter, r *http.Request) {
	q, err := parseFlatQuery(r.URL.Query())
	if err != nil {
		writeRequestError(w, h.log, err)
		return
	}

	page, err := h.search.Search(r.Context(), q)
	if err != nil {
		h.log.Error("ticket search failed", zap.Error(err), zap.String("from", q.From), zap.String("to", q.To))
		writeInternalError(w, h.log, "Failed to search tickets", err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=30")
	writeJSON(w, h.log, http.StatusOK, page)
}

// ListTickets handles GET /v1/tickets/list
// Required: from, to, date. Optional: filter_types, filter_stations_from,
// filter_stations_to, filter_seat_types, sort_by, page, pageSize,
// depStart, depEnd.
func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeRequestError(w, h.log, err)
		return
	}

	page, err := h.search.SearchAggregated(r.Context(), q)
	if err != nil {
		h.log.Error("aggregated ticket search failed", zap.Error(err), zap.String("from", q.From), zap.String("to", q.To))
		writeInternalError(w, h.log, "Failed to search tickets", err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=30")
	writeJSON(w, h.log, http.StatusOK, page)
}

func parseFlatQuery(v url.Values) (models.TicketQuery, error) {
	req, err := required(v, "fromStation", "toStation", "date")
	if err != nil {
		return models.TicketQuery{}, err
	}
	q := models.TicketQuery{From: req[0], To: req[1]}

	if err := parseCommon(v, &q, req[2], "trainTypes", "sortBy"); err != nil {
		return models.TicketQuery{}, err
	}
	if seat := strings.TrimSpace(v.Get("seatType")); seat != "" {
		q.SeatTypes = []string{seat}
	}
	return q, nil
}

func parseListQuery(v url.Values) (models.TicketQuery, error) {
	req, err := required(v, "from", "to", "date")
	if err != nil {
		return models.TicketQuery{}, err
	}
	q := models.TicketQuery{From: req[0], To: req[1]}

	if err := parseCommon(v, &q, req[2], "filter_types", "sort_by"); err != nil {
		return models.TicketQuery{}, err
	}
	q.SeatTypes = csv(v.Get("filter_seat_types"))
	q.FromStations = csv(v.Get("filter_stations_from"))
	q.ToStations = csv(v.Get("filter_stations_to"))
	return q, nil
}

// parseCommon fills the parameters both ticket endpoints share
func parseCommon(v url.Values, q *models.TicketQuery, date, typesParam, sortParam string) error {
	var err error
	if q.Date, err = parseDate(date); err != nil {
		return err
	}
	if q.TrainTypes, err = parseTrainTypes(v, typesParam); err != nil {
		return err
	}
	if q.Sort, err = parseSort(v, sortParam); err != nil {
		return err
	}
	if q.Page, err = parsePositive(v, "page"); err != nil {
		return err
	}
	if q.PageSize, err = parsePositive(v, "pageSize"); err != nil {
		return err
	}
	if q.DepStart, q.DepEnd, err = parseWindow(v); err != nil {
		return err
	}
	return nil
}
