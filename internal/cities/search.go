package cities

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/you/railticket/internal/cache"
	"github.com/you/railticket/internal/metrics"
	"github.com/you/railticket/internal/models"
)

// CityStore runs the ranked city query
type CityStore interface {
	SearchCities(ctx context.Context, keyword string, limit, offset int) ([]models.City, int, error)
}

// Directory answers city keyword searches through a result cache. City data
// is static, so empty answers are cached like any other.
type Directory struct {
	store           CityStore
	cache           *cache.Cache[*models.CityPage]
	defaultPageSize int
	maxPageSize     int
}

// NewDirectory creates a Directory. The cache should use the ServeAll policy.
func NewDirectory(store CityStore, c *cache.Cache[*models.CityPage], defaultPageSize, maxPageSize int) *Directory {
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &Directory{
		store:           store,
		cache:           c,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Search returns one page of cities matching keyword
func (d *Directory) Search(ctx context.Context, keyword string, page, pageSize int) (*models.CityPage, error) {
	start := time.Now()
	defer func() { metrics.ObserveSearch(metrics.CacheCities, time.Since(start)) }()

	keyword = strings.TrimSpace(keyword)
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = d.defaultPageSize
	}
	if pageSize > d.maxPageSize {
		pageSize = d.maxPageSize
	}

	key := cache.Key(keyword, strconv.Itoa(page), strconv.Itoa(pageSize))
	if p, ok := d.cache.Get(key); ok {
		return p, nil
	}

	cities, total, err := d.store.SearchCities(ctx, keyword, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	result := &models.CityPage{
		Meta: models.NewPageMeta(total, page, pageSize),
		Data: cities,
	}
	d.cache.Put(key, result)
	return result, nil
}
