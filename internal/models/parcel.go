package models

import (
	"time"

	"gorm.io/gorm"
)

// Parcel 包裹表
type Parcel struct {
	ID                      uint           `gorm:"primarykey" json:"id"`                                     // 主键
	TrackingNo              string         `gorm:"uniqueIndex;not null" json:"tracking_no"`                  // 运单编号
	UserID                  uint           `gorm:"index;not null" json:"user_id,omitempty"`                  // 寄件用户ID
	Status                  string         `gorm:"index;not null" json:"status"`                             // 包裹状态
	RecipientName           string         `gorm:"not null" json:"recipient_name"`                           // 收件人姓名
	RecipientPhone          string         `gorm:"type:varchar(32)" json:"recipient_phone,omitempty"`        // 收件人电话
	SenderPhone             string         `gorm:"type:varchar(32)" json:"sender_phone,omitempty"`           // 寄件人电话
	PickupLocation          string         `gorm:"not null" json:"pickup_location"`                          // 取件地址
	Destination             string         `gorm:"not null" json:"destination"`                              // 目的地地址
	PresentLocation         string         `json:"present_location,omitempty"`                               // 当前位置描述
	WeightKG                float64        `gorm:"not null;default:0" json:"weight"`                         // 重量（公斤）
	EstimatedCost           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"estimated_cost"` // 保价金额
	ShippingCost            Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_cost"`  // 运费
	CurrentCoordinates      *Coordinates   `gorm:"type:text" json:"current_coordinates,omitempty"`           // 当前坐标
	RouteDetails            *RouteDetails  `gorm:"type:text" json:"route_details,omitempty"`                 // 线路详情
	DistanceKM              *float64       `json:"distance_km,omitempty"`                                    // 距目的地实时里程（公里）
	ETAMinutes              *int           `json:"eta_minutes,omitempty"`                                    // 实时预计送达（分钟）
	ParcelImageURL          string         `json:"parcel_image_url,omitempty"`                               // 包裹照片
	ProofOfDeliveryImageURL string         `json:"proof_of_delivery_image_url,omitempty"`                    // 签收凭证照片
	DeliveredAt             *time.Time     `gorm:"index" json:"delivered_at,omitempty"`                      // 签收时间
	CancelledAt             *time.Time     `gorm:"index" json:"cancelled_at,omitempty"`                      // 取消时间
	CreatedAt               time.Time      `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt               time.Time      `gorm:"index" json:"updated_at"`                                  // 更新时间
	DeletedAt               gorm.DeletedAt `gorm:"index" json:"-"`                                           // 软删除时间
}

// TableName 指定表名
func (Parcel) TableName() string {
	return "parcels"
}
