package tracking

import (
	"encoding/json"

	"github.com/parcel-next/internal/models"
)

// Record 包裹的合并视图（快照叠加增量后的单一逻辑记录）
type Record struct {
	ID                      uint                 `json:"id"`
	TrackingNo              string               `json:"tracking_no"`
	Status                  string               `json:"status"`
	RecipientName           string               `json:"recipient_name"`
	RecipientPhone          string               `json:"recipient_phone"`
	SenderPhone             string               `json:"sender_phone"`
	PickupLocation          string               `json:"pickup_location"`
	Destination             string               `json:"destination"`
	PresentLocation         string               `json:"present_location"`
	Weight                  float64              `json:"weight"`
	EstimatedCost           *models.Money        `json:"estimated_cost"`
	ShippingCost            *models.Money        `json:"shipping_cost"`
	CurrentCoordinates      *models.Coordinates  `json:"current_coordinates"`
	RouteDetails            *models.RouteDetails `json:"route_details"`
	DistanceKM              *float64             `json:"distance_km"`
	ETAMinutes              *int                 `json:"eta_minutes"`
	ParcelImageURL          string               `json:"parcel_image_url"`
	ProofOfDeliveryImageURL string               `json:"proof_of_delivery_image_url"`
}

// Delta 服务端推送的部分字段更新
// 所有字段均可缺省；缺省字段不参与合并。
type Delta struct {
	Status                  *string              `json:"status"`
	PresentLocation         *string              `json:"present_location"`
	Destination             *string              `json:"destination"`
	CurrentCoordinates      *models.Coordinates  `json:"current_coordinates"`
	RouteDetails            *models.RouteDetails `json:"route_details"`
	DistanceKM              *float64             `json:"distance_km"`
	ETAMinutes              *int                 `json:"eta_minutes"`
	ProofOfDeliveryImageURL *string              `json:"proof_of_delivery_image_url"`
}

// IsEmpty 增量是否不携带任何字段
func (d Delta) IsEmpty() bool {
	return d.Status == nil &&
		d.PresentLocation == nil &&
		d.Destination == nil &&
		d.CurrentCoordinates == nil &&
		d.RouteDetails == nil &&
		d.DistanceKM == nil &&
		d.ETAMinutes == nil &&
		d.ProofOfDeliveryImageURL == nil
}

// partialCoordinates 推送载荷中的坐标子对象，逐字段校验存在性
type partialCoordinates struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// toCoordinates 纬度与经度齐备才构成有效坐标，缺一视为缺失
func (p *partialCoordinates) toCoordinates() *models.Coordinates {
	if p == nil || p.Lat == nil || p.Lon == nil {
		return nil
	}
	return &models.Coordinates{Lat: *p.Lat, Lon: *p.Lon}
}

type partialRouteDetails struct {
	PickupCoordinates      *partialCoordinates `json:"pickup_coordinates"`
	DestinationCoordinates *partialCoordinates `json:"destination_coordinates"`
	DistanceKM             *float64            `json:"distance_km"`
	ETAMinutes             *int                `json:"eta_minutes"`
}

// ParseDelta 解析推送消息载荷
// 未知字段忽略；JSON 非法时返回错误，调用方丢弃该条消息。
// 坐标子对象逐字段校验：只带纬度或只带经度的坐标按缺失处理。
func ParseDelta(payload []byte) (Delta, error) {
	var raw struct {
		Status                  *string              `json:"status"`
		PresentLocation         *string              `json:"present_location"`
		Destination             *string              `json:"destination"`
		CurrentCoordinates      *partialCoordinates  `json:"current_coordinates"`
		RouteDetails            *partialRouteDetails `json:"route_details"`
		DistanceKM              *float64             `json:"distance_km"`
		ETAMinutes              *int                 `json:"eta_minutes"`
		ProofOfDeliveryImageURL *string              `json:"proof_of_delivery_image_url"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Delta{}, err
	}

	delta := Delta{
		Status:                  raw.Status,
		PresentLocation:         raw.PresentLocation,
		Destination:             raw.Destination,
		DistanceKM:              raw.DistanceKM,
		ETAMinutes:              raw.ETAMinutes,
		ProofOfDeliveryImageURL: raw.ProofOfDeliveryImageURL,
	}
	delta.CurrentCoordinates = raw.CurrentCoordinates.toCoordinates()
	if raw.RouteDetails != nil {
		route := models.RouteDetails{
			PickupCoordinates:      raw.RouteDetails.PickupCoordinates.toCoordinates(),
			DestinationCoordinates: raw.RouteDetails.DestinationCoordinates.toCoordinates(),
		}
		if raw.RouteDetails.DistanceKM != nil {
			route.DistanceKM = *raw.RouteDetails.DistanceKM
		}
		if raw.RouteDetails.ETAMinutes != nil {
			route.ETAMinutes = *raw.RouteDetails.ETAMinutes
		}
		delta.RouteDetails = &route
	}
	return delta, nil
}

// Apply 将单条增量叠加到记录上，返回新记录
// 逐字段 last-write-wins：增量缺省的字段保留原值，不做删除。
func Apply(record Record, delta Delta) Record {
	if delta.Status != nil {
		record.Status = *delta.Status
	}
	if delta.PresentLocation != nil {
		record.PresentLocation = *delta.PresentLocation
	}
	if delta.Destination != nil {
		record.Destination = *delta.Destination
	}
	if delta.CurrentCoordinates != nil {
		coords := *delta.CurrentCoordinates
		record.CurrentCoordinates = &coords
	}
	if delta.RouteDetails != nil {
		route := *delta.RouteDetails
		record.RouteDetails = &route
	}
	if delta.DistanceKM != nil {
		distance := *delta.DistanceKM
		record.DistanceKM = &distance
	}
	if delta.ETAMinutes != nil {
		eta := *delta.ETAMinutes
		record.ETAMinutes = &eta
	}
	if delta.ProofOfDeliveryImageURL != nil {
		record.ProofOfDeliveryImageURL = *delta.ProofOfDeliveryImageURL
	}
	return record
}

// Fold 将一组增量按到达顺序叠加到记录上
func Fold(record Record, deltas []Delta) Record {
	for _, delta := range deltas {
		record = Apply(record, delta)
	}
	return record
}
