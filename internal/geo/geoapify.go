package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parcel-next/internal/cache"
	"github.com/parcel-next/internal/config"
	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/models"
)

var (
	ErrConfigInvalid   = errors.New("geo config invalid")
	ErrRequestFailed   = errors.New("geo request failed")
	ErrResponseInvalid = errors.New("geo response invalid")
	ErrNotFound        = errors.New("geo location not found")
)

const (
	geocodePath = "/v1/geocode/search"
	routingPath = "/v1/routing"
)

// RouteResult 路径规划结果
type RouteResult struct {
	DistanceKM float64 `json:"distance_km"` // 里程（公里）
	ETAMinutes int     `json:"eta_minutes"` // 预计时长（分钟）
}

// Client Geoapify 客户端
type Client struct {
	cfg        config.GeoConfig
	httpClient *http.Client
	cacheTTL   time.Duration
}

// NewClient 创建 Geoapify 客户端
func NewClient(cfg config.GeoConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrConfigInvalid
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.geoapify.com"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		cacheTTL:   cacheTTL,
	}, nil
}

// Geocode 将地址解析为坐标（带 Redis 缓存）
func (c *Client) Geocode(ctx context.Context, location string) (*models.Coordinates, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrNotFound
	}

	cacheKey := "geo:geocode:" + strings.ToLower(location)
	var cached models.Coordinates
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	query := url.Values{}
	query.Set("text", location)
	query.Set("limit", fmt.Sprintf("%d", c.geocodeLimit()))
	query.Set("apiKey", c.cfg.APIKey)

	var result struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"` // [lon, lat]
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := c.getJSON(ctx, geocodePath, query, &result); err != nil {
		return nil, err
	}
	if len(result.Features) == 0 || len(result.Features[0].Geometry.Coordinates) < 2 {
		return nil, ErrNotFound
	}

	coords := models.Coordinates{
		Lon: result.Features[0].Geometry.Coordinates[0],
		Lat: result.Features[0].Geometry.Coordinates[1],
	}
	if err := cache.SetJSON(ctx, cacheKey, coords, c.cacheTTL); err != nil {
		logger.Warnw("geo_geocode_cache_write_failed", "location", location, "error", err)
	}
	return &coords, nil
}

// Route 计算两点间驾车路径的里程与时长
func (c *Client) Route(ctx context.Context, origin, destination models.Coordinates) (*RouteResult, error) {
	mode := strings.TrimSpace(c.cfg.RoutingMode)
	if mode == "" {
		mode = "drive"
	}

	query := url.Values{}
	query.Set("waypoints", fmt.Sprintf("%f,%f|%f,%f", origin.Lat, origin.Lon, destination.Lat, destination.Lon))
	query.Set("mode", mode)
	query.Set("apiKey", c.cfg.APIKey)

	var result struct {
		Features []struct {
			Properties struct {
				Distance float64 `json:"distance"` // 米
				Time     float64 `json:"time"`     // 秒
			} `json:"properties"`
		} `json:"features"`
	}
	if err := c.getJSON(ctx, routingPath, query, &result); err != nil {
		return nil, err
	}
	if len(result.Features) == 0 {
		return nil, ErrResponseInvalid
	}

	props := result.Features[0].Properties
	etaMinutes := int(props.Time / 60)
	if etaMinutes < 1 {
		etaMinutes = 1
	}
	return &RouteResult{
		DistanceKM: roundKM(props.Distance / 1000),
		ETAMinutes: etaMinutes,
	}, nil
}

func (c *Client) geocodeLimit() int {
	if c.cfg.GeocodeMaxResults > 0 {
		return c.cfg.GeocodeMaxResults
	}
	return 1
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return nil
}

// roundKM 保留 2 位小数
func roundKM(km float64) float64 {
	return float64(int(km*100+0.5)) / 100
}
