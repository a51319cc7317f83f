package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parcel-next/internal/constants"
	"github.com/parcel-next/internal/geo"
	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/models"
	"github.com/parcel-next/internal/queue"
	"github.com/parcel-next/internal/repository"
	"github.com/parcel-next/internal/stream"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrParcelNotFound           = errors.New("parcel not found")
	ErrParcelAccessDenied       = errors.New("access forbidden: you do not own this parcel")
	ErrParcelAlreadyDelivered   = errors.New("cannot cancel a delivered parcel")
	ErrParcelAlreadyCancelled   = errors.New("parcel order is already cancelled")
	ErrDestinationNotChangeable = errors.New("cannot change destination of a delivered parcel")
	ErrInvalidStatusTransition  = errors.New("invalid parcel status transition")
	ErrInvalidParcelInput       = errors.New("invalid parcel input")
)

// 运费报价参数
var (
	shippingBaseCost  = decimal.NewFromFloat(5.00) // 起步价
	shippingPerKGRate = decimal.NewFromFloat(1.50) // 每公斤费率
)

// GeoProvider 地理服务依赖（解析与路径规划）
type GeoProvider interface {
	Geocode(ctx context.Context, location string) (*models.Coordinates, error)
	Route(ctx context.Context, origin, destination models.Coordinates) (*geo.RouteResult, error)
}

// ParcelService 包裹业务服务
type ParcelService struct {
	parcelRepo  repository.ParcelRepository
	hub         *stream.Hub
	queueClient *queue.Client
	geoProvider GeoProvider
}

// NewParcelService 创建包裹服务
func NewParcelService(parcelRepo repository.ParcelRepository, hub *stream.Hub, queueClient *queue.Client, geoProvider GeoProvider) *ParcelService {
	return &ParcelService{
		parcelRepo:  parcelRepo,
		hub:         hub,
		queueClient: queueClient,
		geoProvider: geoProvider,
	}
}

// CreateParcelInput 创建包裹输入
type CreateParcelInput struct {
	UserID         uint
	RecipientName  string
	RecipientPhone string
	SenderPhone    string
	PickupLocation string
	Destination    string
	WeightKG       float64
	EstimatedCost  models.Money
	ParcelImageURL string
}

// QuoteShippingCost 按重量计算运费报价
func QuoteShippingCost(weightKG float64) models.Money {
	if weightKG < 0 {
		weightKG = 0
	}
	weight := decimal.NewFromFloat(weightKG)
	return models.NewMoneyFromDecimal(shippingBaseCost.Add(weight.Mul(shippingPerKGRate)))
}

// Create 创建包裹订单
func (s *ParcelService) Create(input CreateParcelInput) (*models.Parcel, error) {
	if strings.TrimSpace(input.RecipientName) == "" ||
		strings.TrimSpace(input.PickupLocation) == "" ||
		strings.TrimSpace(input.Destination) == "" ||
		input.WeightKG <= 0 {
		return nil, ErrInvalidParcelInput
	}

	parcel := &models.Parcel{
		TrackingNo:     generateTrackingNo(),
		UserID:         input.UserID,
		Status:         constants.ParcelStatusPending,
		RecipientName:  strings.TrimSpace(input.RecipientName),
		RecipientPhone: strings.TrimSpace(input.RecipientPhone),
		SenderPhone:    strings.TrimSpace(input.SenderPhone),
		PickupLocation: strings.TrimSpace(input.PickupLocation),
		Destination:    strings.TrimSpace(input.Destination),
		WeightKG:       input.WeightKG,
		EstimatedCost:  input.EstimatedCost,
		ShippingCost:   QuoteShippingCost(input.WeightKG),
		ParcelImageURL: strings.TrimSpace(input.ParcelImageURL),
	}
	if err := s.parcelRepo.Create(parcel); err != nil {
		return nil, err
	}

	s.enqueueGeocodeRefresh(parcel.ID)
	return parcel, nil
}

// Get 获取包裹详情（校验归属）
func (s *ParcelService) Get(parcelID, userID uint, isAdmin bool) (*models.Parcel, error) {
	parcel, err := s.parcelRepo.GetByID(parcelID)
	if err != nil {
		return nil, err
	}
	if parcel == nil {
		return nil, ErrParcelNotFound
	}
	if parcel.UserID != userID && !isAdmin {
		return nil, ErrParcelAccessDenied
	}
	return parcel, nil
}

// List 分页查询用户包裹
func (s *ParcelService) List(filter repository.ParcelListFilter) ([]models.Parcel, int64, error) {
	return s.parcelRepo.ListByUser(filter)
}

// Cancel 用户取消包裹订单
// 已签收的包裹不可取消；成功后推送状态增量并返回取消后的记录。
func (s *ParcelService) Cancel(parcelID, userID uint) (*models.Parcel, string, error) {
	parcel, err := s.parcelRepo.GetByID(parcelID)
	if err != nil {
		return nil, "", err
	}
	if parcel == nil {
		return nil, "", ErrParcelNotFound
	}
	if parcel.UserID != userID {
		return nil, "", ErrParcelAccessDenied
	}
	if NormalizeStatus(parcel.Status) == constants.ParcelStatusDelivered {
		return nil, "", ErrParcelAlreadyDelivered
	}
	if NormalizeStatus(parcel.Status) == constants.ParcelStatusCancelled {
		return nil, "", ErrParcelAlreadyCancelled
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":       constants.ParcelStatusCancelled,
		"cancelled_at": now,
		"updated_at":   now,
	}
	if err := s.parcelRepo.Updates(parcel.ID, updates); err != nil {
		return nil, "", err
	}
	parcel.Status = constants.ParcelStatusCancelled
	parcel.CancelledAt = &now
	parcel.UpdatedAt = now

	s.publishDelta(parcel.ID, stream.Delta{Status: stream.StringPtr(parcel.Status)})
	s.enqueueStatusNotify(parcel.ID, parcel.Status)

	return parcel, "Parcel order has been cancelled", nil
}

// UpdateDestination 修改包裹目的地
// 已签收的包裹不可修改；线路详情会被清空并交由后台任务重新计算。
func (s *ParcelService) UpdateDestination(parcelID, userID uint, destination string) (*models.Parcel, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, ErrInvalidParcelInput
	}

	parcel, err := s.parcelRepo.GetByID(parcelID)
	if err != nil {
		return nil, err
	}
	if parcel == nil {
		return nil, ErrParcelNotFound
	}
	if parcel.UserID != userID {
		return nil, ErrParcelAccessDenied
	}
	if NormalizeStatus(parcel.Status) == constants.ParcelStatusDelivered {
		return nil, ErrDestinationNotChangeable
	}

	now := time.Now()
	updates := map[string]interface{}{
		"destination":   destination,
		"route_details": nil,
		"distance_km":   nil,
		"eta_minutes":   nil,
		"updated_at":    now,
	}
	if err := s.parcelRepo.Updates(parcel.ID, updates); err != nil {
		return nil, err
	}
	parcel.Destination = destination
	parcel.RouteDetails = nil
	parcel.DistanceKM = nil
	parcel.ETAMinutes = nil
	parcel.UpdatedAt = now

	s.publishDelta(parcel.ID, stream.Delta{Destination: stream.StringPtr(destination)})
	s.enqueueGeocodeRefresh(parcel.ID)

	return parcel, nil
}

// UpdateStatus 调度更新包裹状态（管理端）
func (s *ParcelService) UpdateStatus(parcelID uint, status string) (*models.Parcel, error) {
	status = NormalizeStatus(status)
	if !IsKnownStatus(status) {
		return nil, ErrInvalidStatusTransition
	}

	parcel, err := s.parcelRepo.GetByID(parcelID)
	if err != nil {
		return nil, err
	}
	if parcel == nil {
		return nil, ErrParcelNotFound
	}
	if !CanTransition(parcel.Status, status) {
		return nil, ErrInvalidStatusTransition
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	switch status {
	case constants.ParcelStatusDelivered:
		updates["delivered_at"] = now
		parcel.DeliveredAt = &now
	case constants.ParcelStatusCancelled:
		updates["cancelled_at"] = now
		parcel.CancelledAt = &now
	}
	if err := s.parcelRepo.Updates(parcel.ID, updates); err != nil {
		return nil, err
	}
	parcel.Status = status
	parcel.UpdatedAt = now

	s.publishDelta(parcel.ID, stream.Delta{Status: stream.StringPtr(status)})
	s.enqueueStatusNotify(parcel.ID, status)

	return parcel, nil
}

// UpdateLocation 调度更新包裹当前位置（管理端）
func (s *ParcelService) UpdateLocation(parcelID uint, presentLocation string) (*models.Parcel, error) {
	presentLocation = strings.TrimSpace(presentLocation)
	if presentLocation == "" {
		return nil, ErrInvalidParcelInput
	}

	parcel, err := s.parcelRepo.GetByID(parcelID)
	if err != nil {
		return nil, err
	}
	if parcel == nil {
		return nil, ErrParcelNotFound
	}
	if IsTerminalStatus(parcel.Status) {
		return nil, ErrInvalidStatusTransition
	}

	now := time.Now()
	updates := map[string]interface{}{
		"present_location": presentLocation,
		"updated_at":       now,
	}
	if err := s.parcelRepo.Updates(parcel.ID, updates); err != nil {
		return nil, err
	}
	parcel.PresentLocation = presentLocation
	parcel.UpdatedAt = now

	s.publishDelta(parcel.ID, stream.Delta{PresentLocation: stream.StringPtr(presentLocation)})
	s.enqueueGeocodeRefresh(parcel.ID)

	return parcel, nil
}

// AttachProofOfDelivery 记录签收凭证照片
func (s *ParcelService) AttachProofOfDelivery(parcelID uint, imageURL string) (*models.Parcel, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, ErrInvalidParcelInput
	}

	parcel, err := s.parcelRepo.GetByID(parcelID)
	if err != nil {
		return nil, err
	}
	if parcel == nil {
		return nil, ErrParcelNotFound
	}

	now := time.Now()
	updates := map[string]interface{}{
		"proof_of_delivery_image_url": imageURL,
		"updated_at":                  now,
	}
	if err := s.parcelRepo.Updates(parcel.ID, updates); err != nil {
		return nil, err
	}
	parcel.ProofOfDeliveryImageURL = imageURL
	parcel.UpdatedAt = now

	s.publishDelta(parcel.ID, stream.Delta{ProofOfDeliveryImageURL: stream.StringPtr(imageURL)})
	return parcel, nil
}

// RefreshGeo 重新解析包裹坐标并计算实时线路（由后台任务调用）
func (s *ParcelService) RefreshGeo(ctx context.Context, parcelID uint) error {
	if s.geoProvider == nil {
		return nil
	}

	parcel, err := s.parcelRepo.GetByID(parcelID)
	if err != nil {
		return err
	}
	if parcel == nil {
		return ErrParcelNotFound
	}

	delta := stream.Delta{}
	updates := map[string]interface{}{}

	route := parcel.RouteDetails
	if route == nil {
		route = &models.RouteDetails{}
	}
	if route.PickupCoordinates == nil {
		if coords, err := s.geoProvider.Geocode(ctx, parcel.PickupLocation); err == nil {
			route.PickupCoordinates = coords
		} else if !errors.Is(err, geo.ErrNotFound) {
			logger.Warnw("parcel_geocode_pickup_failed", "parcel_id", parcel.ID, "error", err)
		}
	}
	if route.DestinationCoordinates == nil {
		if coords, err := s.geoProvider.Geocode(ctx, parcel.Destination); err == nil {
			route.DestinationCoordinates = coords
		} else if !errors.Is(err, geo.ErrNotFound) {
			logger.Warnw("parcel_geocode_destination_failed", "parcel_id", parcel.ID, "error", err)
		}
	}
	if route.PickupCoordinates != nil && route.DestinationCoordinates != nil && route.DistanceKM == 0 {
		if planned, err := s.geoProvider.Route(ctx, *route.PickupCoordinates, *route.DestinationCoordinates); err == nil {
			route.DistanceKM = planned.DistanceKM
			route.ETAMinutes = planned.ETAMinutes
		} else {
			logger.Warnw("parcel_route_plan_failed", "parcel_id", parcel.ID, "error", err)
		}
	}
	if route.PickupCoordinates != nil || route.DestinationCoordinates != nil {
		updates["route_details"] = route
		delta.RouteDetails = route
	}

	if parcel.PresentLocation != "" {
		current, err := s.geoProvider.Geocode(ctx, parcel.PresentLocation)
		if err != nil {
			if !errors.Is(err, geo.ErrNotFound) {
				logger.Warnw("parcel_geocode_present_failed", "parcel_id", parcel.ID, "error", err)
			}
		} else {
			updates["current_coordinates"] = current
			delta.CurrentCoordinates = current

			if route.DestinationCoordinates != nil {
				if live, err := s.geoProvider.Route(ctx, *current, *route.DestinationCoordinates); err == nil {
					updates["distance_km"] = live.DistanceKM
					updates["eta_minutes"] = live.ETAMinutes
					delta.DistanceKM = stream.Float64Ptr(live.DistanceKM)
					delta.ETAMinutes = stream.IntPtr(live.ETAMinutes)
				} else {
					logger.Warnw("parcel_live_route_failed", "parcel_id", parcel.ID, "error", err)
				}
			}
		}
	}

	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	if err := s.parcelRepo.Updates(parcel.ID, updates); err != nil {
		return err
	}

	s.publishDelta(parcel.ID, delta)
	return nil
}

func (s *ParcelService) publishDelta(parcelID uint, delta stream.Delta) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(parcelID, delta)
}

func (s *ParcelService) enqueueGeocodeRefresh(parcelID uint) {
	if err := s.queueClient.EnqueueParcelGeocodeRefresh(queue.ParcelGeocodeRefreshPayload{ParcelID: parcelID}); err != nil {
		logger.Warnw("parcel_geocode_refresh_enqueue_failed", "parcel_id", parcelID, "error", err)
	}
}

func (s *ParcelService) enqueueStatusNotify(parcelID uint, status string) {
	if err := s.queueClient.EnqueueParcelStatusNotify(queue.ParcelStatusNotifyPayload{ParcelID: parcelID, Status: status}); err != nil {
		logger.Warnw("parcel_status_notify_enqueue_failed", "parcel_id", parcelID, "error", err)
	}
}

// generateTrackingNo 生成运单编号（时间戳 + 随机后缀）
func generateTrackingNo() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("PN%s%s", time.Now().Format("20060102150405"), suffix)
}
