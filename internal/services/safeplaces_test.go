package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucasmontegu/driwet-sub001/internal/cache"
	"github.com/lucasmontegu/driwet-sub001/internal/clients/places"
	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

type fakePlacesProvider struct {
	mu         sync.Mutex
	searches   int
	configured bool
	searchFn   func(category string, lat, lng float64, limit int) ([]places.Candidate, error)
}

func (f *fakePlacesProvider) Configured() bool { return f.configured }

func (f *fakePlacesProvider) Search(_ context.Context, category string, lat, lng float64, limit int) ([]places.Candidate, error) {
	f.mu.Lock()
	f.searches++
	f.mu.Unlock()
	return f.searchFn(category, lat, lng, limit)
}

func (f *fakePlacesProvider) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

func newPlacesService(provider PlacesProvider) (*SafePlacesService, *cache.MemoryStore) {
	store := cache.NewMemoryStore(zap.NewNop())
	svc := NewSafePlacesService(provider, store, SafePlacesConfig{
		TTL:          24 * time.Hour,
		CellDecimals: 1,
		SearchLimit:  10,
	}, zap.NewNop())
	return svc, store
}

func TestFindNearby_LiveSearch(t *testing.T) {
	provider := &fakePlacesProvider{
		configured: true,
		searchFn: func(category string, lat, lng float64, limit int) ([]places.Candidate, error) {
			switch category {
			case "fuel":
				return []places.Candidate{
					{ID: "g1", Name: "Arnold Shell", Latitude: 38.2461, Longitude: -120.3501, Type: types.PlaceGasStation},
					// Roughly 150 km away, outside any sane radius here.
					{ID: "g2", Name: "Distant Fuel", Latitude: 39.5, Longitude: -121.5, Type: types.PlaceGasStation},
				}, nil
			case "rest_area":
				return []places.Candidate{
					{ID: "r1", Name: "Hwy 4 Rest Area", Latitude: 38.30, Longitude: -120.30, Type: types.PlaceRestArea},
				}, nil
			default:
				return nil, nil
			}
		},
	}
	svc, _ := newPlacesService(provider)

	result, err := svc.FindNearby(context.Background(), 38.2458, -120.3486, 30)
	require.NoError(t, err)

	assert.Equal(t, types.SourceLive, result.Source)
	require.Len(t, result.Places, 2)
	assert.Equal(t, "g1", result.Places[0].ID, "closest first")
	assert.Equal(t, "r1", result.Places[1].ID)
	for i := 1; i < len(result.Places); i++ {
		assert.GreaterOrEqual(t, result.Places[i].DistanceKm, result.Places[i-1].DistanceKm)
	}

	assert.Len(t, result.Grouped.GasStations, 1)
	assert.Len(t, result.Grouped.RestAreas, 1)
	assert.Empty(t, result.Grouped.Towns)
}

func TestFindNearby_SecondQueryServedFromCache(t *testing.T) {
	provider := &fakePlacesProvider{
		configured: true,
		searchFn: func(category string, lat, lng float64, limit int) ([]places.Candidate, error) {
			if category != "fuel" {
				return nil, nil
			}
			return []places.Candidate{
				{ID: "g1", Name: "Arnold Shell", Latitude: 38.2461, Longitude: -120.3501, Type: types.PlaceGasStation},
			}, nil
		},
	}
	svc, _ := newPlacesService(provider)

	first, err := svc.FindNearby(context.Background(), 38.2458, -120.3486, 30)
	require.NoError(t, err)
	require.Equal(t, types.SourceLive, first.Source)
	searchesAfterFirst := provider.searchCount()

	// A nearby query in the same coarse cell reuses the entry.
	second, err := svc.FindNearby(context.Background(), 38.2470, -120.3490, 30)
	require.NoError(t, err)
	assert.Equal(t, types.SourceCache, second.Source)
	assert.Equal(t, first.Places, second.Places)
	assert.Equal(t, searchesAfterFirst, provider.searchCount())

	// A different radius is a different cell key.
	_, err = svc.FindNearby(context.Background(), 38.2458, -120.3486, 60)
	require.NoError(t, err)
	assert.Greater(t, provider.searchCount(), searchesAfterFirst)
}

func TestFindNearby_ZeroResultsFallBackToPlaceholders(t *testing.T) {
	provider := &fakePlacesProvider{
		configured: true,
		searchFn: func(category string, lat, lng float64, limit int) ([]places.Candidate, error) {
			return nil, nil
		},
	}
	svc, _ := newPlacesService(provider)

	result, err := svc.FindNearby(context.Background(), 38.2458, -120.3486, 40)
	require.NoError(t, err)

	assert.Equal(t, types.SourceSynthetic, result.Source)
	require.Len(t, result.Places, 4)

	ids := make(map[string]bool)
	for _, p := range result.Places {
		assert.NotEmpty(t, p.ID)
		assert.False(t, ids[p.ID], "placeholder IDs must be unique")
		ids[p.ID] = true
		assert.LessOrEqual(t, p.DistanceKm, 40.0)
		assert.Greater(t, p.DistanceKm, 0.0)
	}

	// Synthetic answers are not cached; the next query retries the provider.
	searchesAfterFirst := provider.searchCount()
	again, err := svc.FindNearby(context.Background(), 38.2458, -120.3486, 40)
	require.NoError(t, err)
	assert.Equal(t, types.SourceSynthetic, again.Source)
	assert.Greater(t, provider.searchCount(), searchesAfterFirst)
}

func TestFindNearby_UnconfiguredProviderGoesSynthetic(t *testing.T) {
	provider := &fakePlacesProvider{
		configured: false,
		searchFn: func(category string, lat, lng float64, limit int) ([]places.Candidate, error) {
			t.Fatal("unconfigured provider must not be queried")
			return nil, nil
		},
	}
	svc, _ := newPlacesService(provider)

	result, err := svc.FindNearby(context.Background(), 38.2458, -120.3486, 0)
	require.NoError(t, err)
	assert.Equal(t, types.SourceSynthetic, result.Source)
	assert.Len(t, result.Places, 4)
	assert.Zero(t, provider.searchCount())
}

func TestFindNearby_AllSearchesFailedGoesSynthetic(t *testing.T) {
	provider := &fakePlacesProvider{
		configured: true,
		searchFn: func(category string, lat, lng float64, limit int) ([]places.Candidate, error) {
			return nil, types.NewAppError(types.ErrCodeProviderUnavailable, "poi provider down", nil)
		},
	}
	svc, _ := newPlacesService(provider)

	result, err := svc.FindNearby(context.Background(), 38.2458, -120.3486, 25)
	require.NoError(t, err)
	assert.Equal(t, types.SourceSynthetic, result.Source)
	assert.Len(t, result.Places, 4)
}

func TestFindNearby_PartialCategoryFailureKeepsOthers(t *testing.T) {
	provider := &fakePlacesProvider{
		configured: true,
		searchFn: func(category string, lat, lng float64, limit int) ([]places.Candidate, error) {
			if category == "town" {
				return nil, types.NewAppError(types.ErrCodeProviderUnavailable, "town search down", nil)
			}
			if category == "fuel" {
				return []places.Candidate{
					{ID: "g1", Name: "Arnold Shell", Latitude: 38.2461, Longitude: -120.3501, Type: types.PlaceGasStation},
				}, nil
			}
			return nil, nil
		},
	}
	svc, _ := newPlacesService(provider)

	result, err := svc.FindNearby(context.Background(), 38.2458, -120.3486, 25)
	require.NoError(t, err)
	assert.Equal(t, types.SourceLive, result.Source)
	require.Len(t, result.Places, 1)
	assert.Equal(t, "g1", result.Places[0].ID)
}

func TestFindNearby_InvalidInput(t *testing.T) {
	svc, _ := newPlacesService(&fakePlacesProvider{})

	_, err := svc.FindNearby(context.Background(), 138, -520, 25)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeInvalidInput))

	_, err = svc.FindNearby(context.Background(), 38.2458, -120.3486, -5)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeInvalidInput))
}
