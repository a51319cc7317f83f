package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Coordinates 经纬度坐标（以 JSON 形式落库）
type Coordinates struct {
	Lat float64 `json:"lat"` // 纬度
	Lon float64 `json:"lon"` // 经度
}

// Value 用于数据库写入
func (c Coordinates) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan 用于数据库读取
func (c *Coordinates) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported coordinates column type: %T", value)
	}
}

// RouteDetails 线路详情（取件点与目的地坐标、里程与预计时长）
type RouteDetails struct {
	PickupCoordinates      *Coordinates `json:"pickup_coordinates,omitempty"`      // 取件点坐标
	DestinationCoordinates *Coordinates `json:"destination_coordinates,omitempty"` // 目的地坐标
	DistanceKM             float64      `json:"distance_km"`                       // 线路里程（公里）
	ETAMinutes             int          `json:"eta_minutes"`                       // 预计时长（分钟）
}

// Value 用于数据库写入
func (r RouteDetails) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan 用于数据库读取
func (r *RouteDetails) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return errors.New("unsupported route details column type")
	}
}
