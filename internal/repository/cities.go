package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/you/railticket/internal/db"
	"github.com/you/railticket/internal/models"
)

// KeywordShape selects the ranking branch of a city search
type KeywordShape int

const (
	ShapeText    KeywordShape = iota // anything else: match on name
	ShapeDigits                      // all digits: match on admin/area/postal codes
	ShapeLetters                     // all ASCII letters: match on pinyin keys
)

// ClassifyKeyword decides which ranking branch a keyword uses
func ClassifyKeyword(keyword string) KeywordShape {
	if keyword == "" {
		return ShapeText
	}
	digits, letters := true, true
	for _, r := range keyword {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			digits = false
		}
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			letters = false
		}
	}
	switch {
	case digits:
		return ShapeDigits
	case letters:
		return ShapeLetters
	default:
		return ShapeText
	}
}

// CityRepository handles database operations for the city directory
type CityRepository struct {
	db *db.DB
}

// NewCityRepository creates a new CityRepository
func NewCityRepository(database *db.DB) *CityRepository {
	return &CityRepository{db: database}
}

// rankedQuery returns the score expression, match condition and their args
// for a keyword. Only matching rows are returned; score only orders them.
func rankedQuery(keyword string) (score string, scoreArgs []any, cond string, condArgs []any) {
	contains := "%" + escapeLike(keyword) + "%"

	switch ClassifyKeyword(keyword) {
	case ShapeDigits:
		score = `3 * (CASE WHEN admin_code LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)
			+ 3 * (CASE WHEN area_code LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)
			+ 2 * (CASE WHEN postal_code LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)`
		scoreArgs = []any{contains, contains, contains}
		cond = `(admin_code LIKE ? ESCAPE '\' OR area_code LIKE ? ESCAPE '\' OR postal_code LIKE ? ESCAPE '\')`
		condArgs = []any{contains, contains, contains}
	case ShapeLetters:
		prefix := escapeLike(strings.ToLower(keyword)) + "%"
		score = `4 * (CASE WHEN pinyin_initials LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)
			+ 3 * (CASE WHEN pinyin LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)`
		scoreArgs = []any{prefix, prefix}
		cond = `(pinyin_initials LIKE ? ESCAPE '\' OR pinyin LIKE ? ESCAPE '\')`
		condArgs = []any{prefix, prefix}
	default:
		score = `5 * (CASE WHEN name = ? THEN 1 ELSE 0 END)
			+ 3 * (CASE WHEN name LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)`
		scoreArgs = []any{keyword, contains}
		cond = `name LIKE ? ESCAPE '\'`
		condArgs = []any{contains}
	}

	score += " + rank_score + is_hot"
	return score, scoreArgs, cond, condArgs
}

// SearchCities returns one page of cities matching keyword, ordered by
// score desc, hotness desc, rank desc, plus the total match count.
// An empty keyword lists every city by hotness and rank.
func (r *CityRepository) SearchCities(ctx context.Context, keyword string, limit, offset int) ([]models.City, int, error) {
	keyword = strings.TrimSpace(keyword)

	var (
		score     = "rank_score + is_hot"
		cond      = "1 = 1"
		scoreArgs []any
		condArgs  []any
	)
	if keyword != "" {
		score, scoreArgs, cond, condArgs = rankedQuery(keyword)
	}

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM cities WHERE " + cond)
	if err := r.db.Conn().QueryRowContext(ctx, countQuery, condArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cities: %w", err)
	}
	if total == 0 {
		return []models.City{}, 0, nil
	}

	query := `
		SELECT
			id,
			name,
			pinyin,
			pinyin_initials,
			admin_code,
			area_code,
			postal_code,
			lat,
			lng,
			is_hot,
			rank_score,
			(` + score + `) AS score
		FROM cities
		WHERE ` + cond + `
		ORDER BY score DESC, is_hot DESC, rank_score DESC, id ASC
		LIMIT ? OFFSET ?
	`
	args := make([]any, 0, len(scoreArgs)+len(condArgs)+2)
	args = append(args, scoreArgs...)
	args = append(args, condArgs...)
	args = append(args, limit, offset)

	rows, err := r.db.Conn().QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query cities: %w", err)
	}
	defer rows.Close()

	cities := []models.City{}
	for rows.Next() {
		var (
			c        models.City
			lat, lng sql.NullFloat64
			hot      int
			rowScore int
		)
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Pinyin,
			&c.PinyinInitials,
			&c.AdminCode,
			&c.AreaCode,
			&c.PostalCode,
			&lat,
			&lng,
			&hot,
			&c.Rank,
			&rowScore,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan city row: %w", err)
		}
		if lat.Valid {
			c.Lat = &lat.Float64
		}
		if lng.Valid {
			c.Lng = &lng.Float64
		}
		c.IsHot = hot != 0
		cities = append(cities, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating city rows: %w", err)
	}

	return cities, total, nil
}

// UpsertCity inserts a city or updates the row with the same name
func (r *CityRepository) UpsertCity(ctx context.Context, c models.City) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("city name is required")
	}

	hot := 0
	if c.IsHot {
		hot = 1
	}

	r.db.LockWrite()
	defer r.db.UnlockWrite()

	_, err := r.db.Conn().ExecContext(ctx, r.db.Rebind(`
		INSERT INTO cities (name, pinyin, pinyin_initials, admin_code, area_code, postal_code, lat, lng, is_hot, rank_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			pinyin = excluded.pinyin,
			pinyin_initials = excluded.pinyin_initials,
			admin_code = excluded.admin_code,
			area_code = excluded.area_code,
			postal_code = excluded.postal_code,
			lat = excluded.lat,
			lng = excluded.lng,
			is_hot = excluded.is_hot,
			rank_score = excluded.rank_score
	`),
		c.Name, strings.ToLower(c.Pinyin), strings.ToLower(c.PinyinInitials),
		c.AdminCode, c.AreaCode, c.PostalCode,
		nullFloat(c.Lat), nullFloat(c.Lng), hot, c.Rank,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert city %s: %w", c.Name, err)
	}
	return nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
