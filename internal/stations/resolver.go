// Package stations turns free-text place input into station ids.
package stations

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/you/railticket/internal/models"
)

// StationStore is the storage the resolver needs
type StationStore interface {
	ListStations(ctx context.Context) ([]models.Station, error)
	CreateStation(ctx context.Context, name, city string) (*models.Station, error)
}

// Resolver maps input onto station ids using an in-memory directory that is
// loaded from the store on first use.
type Resolver struct {
	store         StationStore
	autoProvision bool
	log           *zap.Logger

	mu     sync.RWMutex
	loaded bool
	dir    []models.Station
}

// NewResolver creates a Resolver. When autoProvision is false, unknown input
// resolves to an empty set instead of creating a station.
func NewResolver(store StationStore, autoProvision bool, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		store:         store,
		autoProvision: autoProvision,
		log:           log.Named("stations"),
	}
}

// directory returns the station list, loading it on first call. A failed
// load is not remembered, the next call retries.
func (r *Resolver) directory(ctx context.Context) ([]models.Station, error) {
	r.mu.RLock()
	if r.loaded {
		dir := r.dir
		r.mu.RUnlock()
		return dir, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.dir, nil
	}

	stations, err := r.store.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load station directory: %w", err)
	}
	r.dir = stations
	r.loaded = true
	r.log.Info("station directory loaded", zap.Int("stations", len(stations)))
	return r.dir, nil
}

// Resolve returns the station ids for input. Rules are tried in order and
// the first one with any match wins:
//  1. exact station name
//  2. exact derived city
//  3. substring of station name or city
//  4. provisioning a new station named after the input (if enabled)
func (r *Resolver) Resolve(ctx context.Context, input string) ([]int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	dir, err := r.directory(ctx)
	if err != nil {
		return nil, err
	}

	if ids := match(dir, func(s models.Station) bool { return s.Name == input }); len(ids) > 0 {
		return ids, nil
	}
	if ids := match(dir, func(s models.Station) bool { return s.City == input }); len(ids) > 0 {
		return ids, nil
	}
	if ids := match(dir, func(s models.Station) bool {
		return strings.Contains(s.Name, input) || strings.Contains(s.City, input)
	}); len(ids) > 0 {
		return ids, nil
	}

	if !r.autoProvision {
		r.log.Debug("unknown station, provisioning disabled", zap.String("input", input))
		return []int64{}, nil
	}

	s, err := r.Provision(ctx, input)
	if err != nil {
		return nil, err
	}
	return []int64{s.ID}, nil
}

// Provision creates a station whose name and city are both the raw input
// and adds it to the directory. Provisioning an existing name returns it.
func (r *Resolver) Provision(ctx context.Context, name string) (*models.Station, error) {
	name = strings.TrimSpace(name)
	if _, err := r.directory(ctx); err != nil {
		return nil, err
	}

	s, err := r.store.CreateStation(ctx, name, name)
	if err != nil {
		return nil, fmt.Errorf("failed to provision station %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.dir {
		if existing.ID == s.ID {
			return s, nil
		}
	}
	// copy-on-write: readers may still hold the previous slice
	next := make([]models.Station, len(r.dir), len(r.dir)+1)
	copy(next, r.dir)
	r.dir = append(next, *s)

	r.log.Info("station provisioned", zap.String("name", s.Name), zap.Int64("id", s.ID))
	return s, nil
}

func match(dir []models.Station, pred func(models.Station) bool) []int64 {
	var ids []int64
	for _, s := range dir {
		if pred(s) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
