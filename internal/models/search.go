package models

import "strings"

// SortKey is the validated ordering requested for a ticket search
type SortKey string

const (
	SortDepartureAsc SortKey = "departure_asc"
	SortDurationAsc  SortKey = "duration_asc"
	SortPriceAsc     SortKey = "price_asc"
)

// sortAliases maps every accepted spelling onto its SortKey.
// Translation happens once at the HTTP boundary.
var sortAliases = map[string]SortKey{
	"":              SortDepartureAsc,
	"departure_asc": SortDepartureAsc,
	"departure":     SortDepartureAsc,
	"出发时间":          SortDepartureAsc,
	"出发最早":          SortDepartureAsc,
	"duration_asc":  SortDurationAsc,
	"duration":      SortDurationAsc,
	"耗时":            SortDurationAsc,
	"耗时最短":          SortDurationAsc,
	"运行时长":          SortDurationAsc,
	"price_asc":     SortPriceAsc,
	"price":         SortPriceAsc,
	"价格":            SortPriceAsc,
	"价格最低":          SortPriceAsc,
}

// ParseSortKey resolves an alias; ok is false for unknown input
func ParseSortKey(s string) (SortKey, bool) {
	k, ok := sortAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

// TicketQuery is the typed request shared by the flat and aggregated searches.
// From, To and Date are required; everything else narrows or orders results.
type TicketQuery struct {
	From       string
	To         string
	Date       string // YYYY-MM-DD
	TrainTypes []string
	DepStart   string // HH:MM inclusive, empty = open
	DepEnd     string // HH:MM inclusive, empty = open
	SeatTypes  []string
	Sort       SortKey
	Page       int
	PageSize   int

	// Aggregated search only: restrict to these departure/arrival station names
	FromStations []string
	ToStations   []string
}

// FullySpecified reports whether origin, destination and date are all present
func (q TicketQuery) FullySpecified() bool {
	return strings.TrimSpace(q.From) != "" && strings.TrimSpace(q.To) != "" && strings.TrimSpace(q.Date) != ""
}

// PageMeta is the pagination block of every search envelope
type PageMeta struct {
	TotalItems  int `json:"totalItems"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
}

// NewPageMeta computes totalPages as ceil(total/pageSize)
func NewPageMeta(total, page, pageSize int) PageMeta {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return PageMeta{
		TotalItems:  total,
		TotalPages:  pages,
		CurrentPage: page,
		PageSize:    pageSize,
	}
}

// SeatOffering is one seat category on a train, derived on every read
type SeatOffering struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Price  *int   `json:"price"`
}

// Ticket is one train in the flat search result
type Ticket struct {
	TrainNo       string         `json:"trainNo"`
	TrainType     string         `json:"trainType"`
	FromStation   string         `json:"fromStation"`
	ToStation     string         `json:"toStation"`
	Date          string         `json:"date"`
	DepartureTime string         `json:"departureTime"`
	ArrivalTime   string         `json:"arrivalTime"`
	Duration      string         `json:"duration"`
	ArrivalType   string         `json:"arrivalType"`
	Seats         []SeatOffering `json:"seats"`
}

// TicketPage is the flat search envelope
type TicketPage struct {
	Meta PageMeta `json:"meta"`
	Data []Ticket `json:"data"`
}

// TotalItems reports the unfiltered match count used by the cache policy
func (p *TicketPage) TotalItems() int { return p.Meta.TotalItems }

// SeatCell is one slot of the fixed-shape seat matrix
type SeatCell struct {
	Status string `json:"status"`
	Price  *int   `json:"price"`
}

// TicketRow is one train in the aggregated/tabular result; Seats always
// carries every canonical seat category.
type TicketRow struct {
	TrainNo       string              `json:"trainNo"`
	TrainType     string              `json:"trainType"`
	FromStation   string              `json:"fromStation"`
	ToStation     string              `json:"toStation"`
	Date          string              `json:"date"`
	DepartureTime string              `json:"departureTime"`
	ArrivalTime   string              `json:"arrivalTime"`
	Duration      string              `json:"duration"`
	ArrivalType   string              `json:"arrivalType"`
	Seats         map[string]SeatCell `json:"seats"`
}

// Facets are the distinct values exposed next to aggregated results
type Facets struct {
	DepartureStations []string `json:"departureStations"`
	ArrivalStations   []string `json:"arrivalStations"`
	SeatTypes         []string `json:"seatTypes"`
}

// AggregatedPage is the faceted search envelope
type AggregatedPage struct {
	Meta    PageMeta    `json:"meta"`
	Filters Facets      `json:"filters"`
	Data    []TicketRow `json:"data"`
}

// TotalItems reports the unfiltered match count used by the cache policy
func (p *AggregatedPage) TotalItems() int { return p.Meta.TotalItems }
