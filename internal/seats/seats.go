// Package seats synthesizes deterministic seat availability and prices.
//
// Nothing here is persisted: every read recomputes offerings from the train
// category and a sequence index, so the same (category, index) pair always
// yields the same seats on every code path.
package seats

import (
	"strconv"

	"github.com/you/railticket/internal/models"
)

// Canonical seat categories, in table column order
const (
	Business   = "商务座"
	FirstClass = "一等座"
	Second     = "二等座"
	SoftSleep  = "软卧"
	HardSleep  = "硬卧"
	HardSeat   = "硬座"
	NoSeat     = "无座"
)

// Status sentinels
const (
	StatusAvailable = "有"
	StatusSoldOut   = "无"
	StatusAbsent    = "--"
)

// availableThreshold: stock above this is reported as StatusAvailable
const availableThreshold = 20

// DefaultPriceCategory is used for price sorting when no seat type is given
const DefaultPriceCategory = Second

// Canonical returns every seat category in fixed display order
func Canonical() []string {
	return []string{Business, FirstClass, Second, SoftSleep, HardSleep, HardSeat, NoSeat}
}

// Raw is a synthesized seat before status derivation
type Raw struct {
	Category string
	Stock    int
	Price    *int
}

// IsFast reports whether a train category uses the high-speed seat set
func IsFast(trainType string) bool {
	return trainType == "G" || trainType == "D"
}

// Synthesize returns the ordered raw seats for a train category at a
// sequence index. Every value cycles with small moduli over the index.
func Synthesize(trainType string, index int) []Raw {
	if index < 0 {
		index = -index
	}
	if IsFast(trainType) {
		return []Raw{
			{Category: Business, Stock: (index * 7) % 9, Price: price(1500 + (index%3)*100)},
			{Category: FirstClass, Stock: (index % 5) * 8, Price: price(800 + (index%4)*50)},
			{Category: Second, Stock: ((index + 3) % 6) * 10, Price: price(500 + (index%5)*30)},
			{Category: NoSeat, Stock: (index % 4) * 7},
		}
	}
	return []Raw{
		{Category: SoftSleep, Stock: (index % 3) * 6, Price: price(450 + (index%3)*20)},
		{Category: HardSleep, Stock: (index % 8) * 4, Price: price(280 + (index%4)*15)},
		{Category: HardSeat, Stock: 5 + (index%9)*3, Price: price(120 + (index%5)*8)},
		{Category: NoSeat, Stock: (index % 5) * 6},
	}
}

// Status maps a raw stock count onto its display status
func Status(stock int) string {
	switch {
	case stock <= 0:
		return StatusSoldOut
	case stock > availableThreshold:
		return StatusAvailable
	default:
		return strconv.Itoa(stock)
	}
}

// Offerings synthesizes and derives the display seats for a train
func Offerings(trainType string, index int) []models.SeatOffering {
	raw := Synthesize(trainType, index)
	out := make([]models.SeatOffering, 0, len(raw))
	for _, r := range raw {
		p := r.Price
		if r.Category == NoSeat {
			p = nil
		}
		out = append(out, models.SeatOffering{
			Type:   r.Category,
			Status: Status(r.Stock),
			Price:  p,
		})
	}
	return out
}

// Matrix returns the fixed-shape seat table for a train: one cell per
// canonical category, StatusAbsent where the train has no such seat.
func Matrix(trainType string, index int) map[string]models.SeatCell {
	m := make(map[string]models.SeatCell, len(Canonical()))
	for _, c := range Canonical() {
		m[c] = models.SeatCell{Status: StatusAbsent}
	}
	for _, o := range Offerings(trainType, index) {
		m[o.Type] = models.SeatCell{Status: o.Status, Price: o.Price}
	}
	return m
}

// Has reports whether any offering is of the given category
func Has(offerings []models.SeatOffering, category string) bool {
	for _, o := range offerings {
		if o.Type == category {
			return true
		}
	}
	return false
}

// PriceOf returns the price of a category, or false when absent or unpriced
func PriceOf(offerings []models.SeatOffering, category string) (int, bool) {
	for _, o := range offerings {
		if o.Type == category && o.Price != nil {
			return *o.Price, true
		}
	}
	return 0, false
}

func price(v int) *int { return &v }
