// Package places is the client for the external POI provider used to find
// shelter candidates. Like the weather client it validates raw provider
// JSON at the boundary and maps provider categories onto the fixed
// SafePlace types.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// ProviderName identifies this provider in result provenance.
const ProviderName = "poi-search"

// categoryTable maps provider category strings onto SafePlace types.
// Providers disagree on naming; all synonyms funnel into three types.
var categoryTable = map[string]types.PlaceType{
	"fuel":           types.PlaceGasStation,
	"gas_station":    types.PlaceGasStation,
	"petrol_station": types.PlaceGasStation,
	"rest_area":      types.PlaceRestArea,
	"rest_stop":      types.PlaceRestArea,
	"services":       types.PlaceRestArea,
	"town":           types.PlaceTown,
	"city":           types.PlaceTown,
	"village":        types.PlaceTown,
	"place":          types.PlaceTown,
}

// queryCategory is the canonical provider category to search for each
// SafePlace type.
var queryCategory = map[types.PlaceType]string{
	types.PlaceGasStation: "fuel",
	types.PlaceRestArea:   "rest_area",
	types.PlaceTown:       "town",
}

// MapCategory resolves a provider category string to a SafePlace type.
func MapCategory(category string) (types.PlaceType, bool) {
	t, ok := categoryTable[strings.ToLower(category)]
	return t, ok
}

// QueryCategory returns the provider category to search for a place type.
func QueryCategory(t types.PlaceType) (string, bool) {
	c, ok := queryCategory[t]
	return c, ok
}

// HTTPDoer abstracts the HTTP transport for testability.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Candidate is one validated search result before distance computation.
type Candidate struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Address   string
	Type      types.PlaceType
}

// Client searches the POI provider by category around a coordinate.
type Client struct {
	apiKey   string
	baseURL  string
	doer     HTTPDoer
	validate *validator.Validate
}

// NewClient creates a places client using the given transport.
func NewClient(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:   apiKey,
		baseURL:  baseURL,
		doer:     doer,
		validate: validator.New(),
	}
}

// Configured reports whether the client can reach a provider at all.
// An unconfigured client makes the resolver skip straight to its
// synthetic fallback instead of issuing requests that cannot succeed.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// Search queries one provider category around a proximity point.
// Candidates with categories outside the fixed table are dropped.
func (c *Client) Search(ctx context.Context, category string, lat, lng float64, limit int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("lat", fmt.Sprintf("%.6f", lat))
	params.Set("lng", fmt.Sprintf("%.6f", lng))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("key", c.apiKey)

	requestURL := fmt.Sprintf("%s/v1/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "build places request", err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppError(types.ErrCodeProviderUnavailable,
			fmt.Sprintf("places provider error %d: %s", resp.StatusCode, string(body)), nil)
	}

	var raw searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, types.NewAppError(types.ErrCodeProviderUnavailable, "decode places response", err)
	}
	if err := c.validate.Struct(raw); err != nil {
		return nil, types.NewAppError(types.ErrCodeProviderUnavailable,
			"places provider returned invalid results", err)
	}

	candidates := make([]Candidate, 0, len(raw.Results))
	for _, r := range raw.Results {
		placeType, ok := MapCategory(r.Category)
		if !ok {
			// Fall back to the category we asked for; providers sometimes
			// echo their own internal naming.
			placeType, ok = MapCategory(category)
			if !ok {
				continue
			}
		}
		candidates = append(candidates, Candidate{
			ID:        r.ID,
			Name:      r.Name,
			Latitude:  r.Coordinates.Lat,
			Longitude: r.Coordinates.Lng,
			Address:   r.Address,
			Type:      placeType,
		})
	}
	return candidates, nil
}

// searchResponse is the provider's raw search payload.
type searchResponse struct {
	Results []rawResult `json:"results" validate:"dive"`
}

type rawResult struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Category    string `json:"category"`
	Coordinates struct {
		Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
		Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
	} `json:"coordinates"`
	Address string `json:"address"`
}
