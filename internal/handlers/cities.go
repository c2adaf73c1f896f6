package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/you/railticket/internal/models"
)

// CitySearcher defines the city directory search
type CitySearcher interface {
	Search(ctx context.Context, keyword string, page, pageSize int) (*models.CityPage, error)
}

// CityHandler handles HTTP requests for the city directory
type CityHandler struct {
	search CitySearcher
	log    *zap.Logger
}

// NewCityHandler creates a new handler with the given directory
func NewCityHandler(search CitySearcher, log *zap.Logger) *CityHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CityHandler{search: search, log: log.Named("cities")}
}

// Departures handles GET /v1/departures
func (h *CityHandler) Departures(w http.ResponseWriter, r *http.Request) {
	h.searchCities(w, r)
}

// Destinations handles GET /v1/destinations
// Same directory as departures; kept as its own route for the client.
func (h *CityHandler) Destinations(w http.ResponseWriter, r *http.Request) {
	h.searchCities(w, r)
}

func (h *CityHandler) searchCities(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()

	page, err := parsePositive(v, "page")
	if err != nil {
		writeRequestError(w, h.log, err)
		return
	}
	pageSize, err := parsePositive(v, "pageSize")
	if err != nil {
		writeRequestError(w, h.log, err)
		return
	}

	result, err := h.search.Search(r.Context(), v.Get("keyword"), page, pageSize)
	if err != nil {
		h.log.Error("city search failed", zap.Error(err))
		writeInternalError(w, h.log, "Failed to search cities", err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=30")
	writeJSON(w, h.log, http.StatusOK, result)
}
