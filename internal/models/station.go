package models

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Station is a physical boarding point. City is derived from Name.
type Station struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	City string `db:"city" json:"city"`
}

// stationSuffixes are stripped from a station name to obtain its city,
// longest first so "南站" wins over "南".
var stationSuffixes = []string{
	"虹桥", "南站", "北站", "东站", "西站", "站", "南", "北", "东", "西",
}

// DeriveCity strips one known suffix from a station name ("广州南" -> "广州").
// A suffix is only stripped when at least two characters remain, so city
// names that end in a direction ("济南", "海东") are kept intact.
func DeriveCity(stationName string) string {
	name := strings.TrimSpace(stationName)
	for _, suffix := range stationSuffixes {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		rest := strings.TrimSuffix(name, suffix)
		if utf8.RuneCountInString(rest) >= 2 {
			return rest
		}
		return name
	}
	return name
}

// Validate checks if the Station has usable data
func (s *Station) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("station name is required")
	}
	if strings.TrimSpace(s.City) == "" {
		return errors.New("station city is required")
	}
	return nil
}
