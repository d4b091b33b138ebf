package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lucasmontegu/driwet-sub001/internal/cache"
	"github.com/lucasmontegu/driwet-sub001/internal/clients/places"
	"github.com/lucasmontegu/driwet-sub001/internal/lib/geo"
	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// DefaultSearchRadiusKm is used when a safe-place query omits the radius.
const DefaultSearchRadiusKm = 50.0

// PlacesProvider searches the external POI service by category. The
// places client satisfies it.
type PlacesProvider interface {
	Configured() bool
	Search(ctx context.Context, category string, lat, lng float64, limit int) ([]places.Candidate, error)
}

// SafePlacesConfig tunes the resolver.
type SafePlacesConfig struct {
	TTL          time.Duration
	CellDecimals int
	SearchLimit  int
}

// SafePlacesService resolves shelter candidates near a coordinate. It
// answers from three tiers in order: a fresh cached cell, a live provider
// search, and finally synthetic placeholder points so a driver in bad
// weather always gets an answer. Synthetic results are never cached, so
// the next query retries the provider.
type SafePlacesService struct {
	provider PlacesProvider
	store    cache.Store
	cfg      SafePlacesConfig
	logger   *zap.Logger
}

// NewSafePlacesService creates the resolver.
func NewSafePlacesService(provider PlacesProvider, store cache.Store, cfg SafePlacesConfig, logger *zap.Logger) *SafePlacesService {
	return &SafePlacesService{
		provider: provider,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// FindNearby returns shelter candidates within radiusKm of the origin,
// sorted by distance. A radius of zero selects the default.
func (s *SafePlacesService) FindNearby(ctx context.Context, lat, lng, radiusKm float64) (*types.SafePlacesResult, error) {
	origin, err := geo.NewPoint(lat, lng)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInvalidInput, "invalid coordinates", err)
	}
	if radiusKm < 0 {
		return nil, types.NewAppError(types.ErrCodeInvalidInput,
			fmt.Sprintf("search radius must not be negative, got %g", radiusKm), nil)
	}
	if radiusKm == 0 {
		radiusKm = DefaultSearchRadiusKm
	}

	key := cache.CellKey("places", origin, s.cfg.CellDecimals, radiusKm)

	var cached []types.SafePlace
	entry, found, err := s.store.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("places cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		return &types.SafePlacesResult{
			Places:    cached,
			Grouped:   types.GroupByType(cached),
			Source:    types.SourceCache,
			FetchedAt: entry.FetchedAt,
		}, nil
	}

	if s.provider != nil && s.provider.Configured() {
		found, err := s.searchLive(ctx, origin, radiusKm)
		if err == nil && len(found) > 0 {
			if putErr := s.store.Put(ctx, key, found, s.cfg.TTL); putErr != nil {
				s.logger.Warn("places cache write failed",
					zap.String("key", key),
					zap.String("code", string(types.ErrCodeCacheWriteFailed)),
					zap.Error(putErr))
			}
			return &types.SafePlacesResult{
				Places:    found,
				Grouped:   types.GroupByType(found),
				Source:    types.SourceLive,
				FetchedAt: time.Now().UTC(),
			}, nil
		}
		if err != nil {
			s.logger.Warn("place search failed, falling back to placeholders", zap.Error(err))
		}
	}

	synthetic := syntheticPlaces(origin, radiusKm)
	return &types.SafePlacesResult{
		Places:    synthetic,
		Grouped:   types.GroupByType(synthetic),
		Source:    types.SourceSynthetic,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// searchLive fans out one provider search per place category and merges
// the candidates. A failed category is skipped; the search errors only
// when every category fails.
func (s *SafePlacesService) searchLive(ctx context.Context, origin geo.Point, radiusKm float64) ([]types.SafePlace, error) {
	categories := []types.PlaceType{types.PlaceGasStation, types.PlaceRestArea, types.PlaceTown}

	candidates := make([][]places.Candidate, len(categories))
	errs := make([]error, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, placeType := range categories {
		category, ok := places.QueryCategory(placeType)
		if !ok {
			continue
		}
		g.Go(func() error {
			found, err := s.provider.Search(gctx, category, origin.Latitude, origin.Longitude, s.cfg.SearchLimit)
			if err != nil {
				errs[i] = err
				return nil
			}
			candidates[i] = found
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	result := make([]types.SafePlace, 0)
	for i := range categories {
		if errs[i] != nil {
			failures++
			s.logger.Warn("place category search failed",
				zap.String("category", string(categories[i])),
				zap.Error(errs[i]))
			continue
		}
		for _, c := range candidates[i] {
			p, err := geo.NewPoint(c.Latitude, c.Longitude)
			if err != nil {
				continue
			}
			dist, err := geo.DistanceKm(origin, p)
			if err != nil || dist > radiusKm {
				continue
			}
			result = append(result, types.SafePlace{
				ID:         c.ID,
				Name:       c.Name,
				Type:       c.Type,
				Latitude:   c.Latitude,
				Longitude:  c.Longitude,
				Address:    c.Address,
				DistanceKm: geo.RoundKm(dist),
			})
		}
	}

	if failures == len(categories) {
		return nil, types.NewAppError(types.ErrCodeProviderUnavailable, "every place search failed", errs[0])
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DistanceKm != result[j].DistanceKm {
			return result[i].DistanceKm < result[j].DistanceKm
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// syntheticPlaces builds the last-resort answer: four placeholder stop
// points on the cardinal directions, inside the search radius. They carry
// the synthetic provenance tier so clients can label them honestly.
func syntheticPlaces(origin geo.Point, radiusKm float64) []types.SafePlace {
	offset := radiusKm / 2
	cardinals := []struct {
		name    string
		northKm float64
		eastKm  float64
	}{
		{"Suggested stop north", offset, 0},
		{"Suggested stop east", 0, offset},
		{"Suggested stop south", -offset, 0},
		{"Suggested stop west", 0, -offset},
	}

	result := make([]types.SafePlace, 0, len(cardinals))
	for _, c := range cardinals {
		p := geo.OffsetKm(origin, c.northKm, c.eastKm)
		if !p.Valid() {
			continue
		}
		dist, err := geo.DistanceKm(origin, p)
		if err != nil {
			continue
		}
		result = append(result, types.SafePlace{
			ID:         uuid.NewString(),
			Name:       c.name,
			Type:       types.PlaceRestArea,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			DistanceKm: geo.RoundKm(dist),
		})
	}
	return result
}
