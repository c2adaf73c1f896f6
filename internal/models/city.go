package models

// City is a searchable place record. Rank and hotness only order results.
type City struct {
	ID             int64    `db:"id" json:"id"`
	Name           string   `db:"name" json:"name"`
	Pinyin         string   `db:"pinyin" json:"pinyin"`
	PinyinInitials string   `db:"pinyin_initials" json:"pinyinInitials"`
	AdminCode      string   `db:"admin_code" json:"adminCode"`
	AreaCode       string   `db:"area_code" json:"areaCode"`
	PostalCode     string   `db:"postal_code" json:"postalCode"`
	Lat            *float64 `db:"lat" json:"lat"`
	Lng            *float64 `db:"lng" json:"lng"`
	IsHot          bool     `db:"is_hot" json:"isHot"`
	Rank           int      `db:"rank_score" json:"rank"`
}

// CityPage is the city directory search envelope
type CityPage struct {
	Meta PageMeta `json:"meta"`
	Data []City   `json:"data"`
}

// TotalItems reports the match count
func (p *CityPage) TotalItems() int { return p.Meta.TotalItems }
