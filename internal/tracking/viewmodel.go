package tracking

import (
	"strconv"

	"github.com/parcel-next/internal/constants"
	"github.com/parcel-next/internal/models"
)

// Point 地图上的一个坐标点
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ViewModel 由合并视图派生的展示无关事实
// 每次合并后整体重算，不做跨合并缓存。
type ViewModel struct {
	Status                  string  `json:"status"`
	Pickup                  *Point  `json:"pickup"`
	Destination             *Point  `json:"destination"`
	Current                 *Point  `json:"current"`
	RouteLine               []Point `json:"route_line"`
	MapCenter               *Point  `json:"map_center"`
	IsActionable            bool    `json:"is_actionable"`
	DistanceText            string  `json:"distance_text"`
	ETAText                 string  `json:"eta_text"`
	EstimatedCostText       string  `json:"estimated_cost_text"`
	ShippingCostText        string  `json:"shipping_cost_text"`
	ParcelImageURL          string  `json:"parcel_image_url"`
	ProofOfDeliveryImageURL string  `json:"proof_of_delivery_image_url"`
}

// ImageURLResolver 图片地址归一化钩子（相对路径转绝对地址等）
type ImageURLResolver func(string) string

const missingValueText = "N/A"

// BuildViewModel 由合并视图计算展示模型
// 对任何形态的缺失坐标都不 panic：缺少纬度或经度时该点为 nil。
func BuildViewModel(record *Record, resolveImage ImageURLResolver) ViewModel {
	if record == nil {
		return ViewModel{RouteLine: []Point{}, EstimatedCostText: missingValueText, ShippingCostText: missingValueText}
	}

	vm := ViewModel{
		Status:            record.Status,
		IsActionable:      isActionableStatus(record.Status),
		DistanceText:      missingValueText,
		ETAText:           missingValueText,
		EstimatedCostText: formatMoney(record.EstimatedCost),
		ShippingCostText:  formatMoney(record.ShippingCost),
		RouteLine:         []Point{},
	}

	if record.RouteDetails != nil {
		vm.Pickup = pointFromCoordinates(record.RouteDetails.PickupCoordinates)
		vm.Destination = pointFromCoordinates(record.RouteDetails.DestinationCoordinates)
	}
	vm.Current = pointFromCoordinates(record.CurrentCoordinates)

	if vm.Pickup != nil && vm.Destination != nil {
		vm.RouteLine = []Point{*vm.Pickup, *vm.Destination}
	}
	for _, candidate := range []*Point{vm.Pickup, vm.Current, vm.Destination} {
		if candidate != nil {
			vm.MapCenter = candidate
			break
		}
	}

	if record.DistanceKM != nil {
		vm.DistanceText = formatDistanceKM(*record.DistanceKM)
	}
	if record.ETAMinutes != nil {
		vm.ETAText = formatETAMinutes(*record.ETAMinutes)
	}

	vm.ParcelImageURL = resolveImageURL(record.ParcelImageURL, resolveImage)
	vm.ProofOfDeliveryImageURL = resolveImageURL(record.ProofOfDeliveryImageURL, resolveImage)
	return vm
}

// isActionableStatus 终态（已签收/已取消）不可操作，其余状态一律可操作
// 未识别的状态按可操作处理，避免新状态悄悄隐藏用户操作入口。
func isActionableStatus(status string) bool {
	return status != constants.ParcelStatusDelivered && status != constants.ParcelStatusCancelled
}

func pointFromCoordinates(coords *models.Coordinates) *Point {
	if coords == nil {
		return nil
	}
	return &Point{Lat: coords.Lat, Lon: coords.Lon}
}

func formatMoney(amount *models.Money) string {
	if amount == nil {
		return missingValueText
	}
	return amount.String()
}

func formatDistanceKM(distance float64) string {
	return strconv.FormatFloat(distance, 'f', -1, 64) + " km"
}

func formatETAMinutes(minutes int) string {
	return strconv.Itoa(minutes) + " min"
}

func resolveImageURL(raw string, resolve ImageURLResolver) string {
	if raw == "" {
		return ""
	}
	if resolve == nil {
		return raw
	}
	return resolve(raw)
}
