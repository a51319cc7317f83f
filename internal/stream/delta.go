package stream

import (
	"github.com/parcel-next/internal/models"
)

// Delta 包裹增量更新载荷（仅携带发生变化的字段）
type Delta struct {
	Status                  *string              `json:"status,omitempty"`                      // 包裹状态
	PresentLocation         *string              `json:"present_location,omitempty"`            // 当前位置描述
	Destination             *string              `json:"destination,omitempty"`                 // 目的地地址
	CurrentCoordinates      *models.Coordinates  `json:"current_coordinates,omitempty"`         // 当前坐标
	RouteDetails            *models.RouteDetails `json:"route_details,omitempty"`               // 线路详情
	DistanceKM              *float64             `json:"distance_km,omitempty"`                 // 距目的地实时里程
	ETAMinutes              *int                 `json:"eta_minutes,omitempty"`                 // 实时预计送达
	ProofOfDeliveryImageURL *string              `json:"proof_of_delivery_image_url,omitempty"` // 签收凭证照片
}

// IsEmpty 判断增量是否没有任何字段
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

// StringPtr 构造字符串指针
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr 构造 float64 指针
func Float64Ptr(f float64) *float64 {
	return &f
}

// IntPtr 构造 int 指针
func IntPtr(i int) *int {
	return &i
}
