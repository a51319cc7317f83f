package public

import (
	"strconv"

	"github.com/parcel-next/internal/http/handlers/shared"
	"github.com/parcel-next/internal/http/response"
	"github.com/parcel-next/internal/models"
	"github.com/parcel-next/internal/repository"
	"github.com/parcel-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateParcelRequest 创建包裹请求
type CreateParcelRequest struct {
	RecipientName  string       `json:"recipient_name" binding:"required"`
	RecipientPhone string       `json:"recipient_phone"`
	SenderPhone    string       `json:"sender_phone"`
	PickupLocation string       `json:"pickup_location" binding:"required"`
	Destination    string       `json:"destination" binding:"required"`
	Weight         float64      `json:"weight" binding:"required"`
	EstimatedCost  models.Money `json:"estimated_cost"`
	ParcelImageURL string       `json:"parcel_image_url"`
}

// UpdateDestinationRequest 修改目的地请求
type UpdateDestinationRequest struct {
	Destination string `json:"destination" binding:"required"`
}

// CreateParcel 创建包裹订单
func (h *Handler) CreateParcel(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreateParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing required fields")
		return
	}

	parcel, err := h.ParcelService.Create(service.CreateParcelInput{
		UserID:         uid,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		SenderPhone:    req.SenderPhone,
		PickupLocation: req.PickupLocation,
		Destination:    req.Destination,
		WeightKG:       req.Weight,
		EstimatedCost:  req.EstimatedCost,
		ParcelImageURL: req.ParcelImageURL,
	})
	if err != nil {
		respondWithMappedError(c, err, parcelErrorRules)
		return
	}
	response.SuccessWithMsg(c, "Parcel order created successfully", parcel)
}

// ListParcels 分页查询当前用户的包裹
func (h *Handler) ListParcels(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)

	parcels, total, err := h.ParcelService.List(repository.ParcelListFilter{
		UserID:   uid,
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondWithMappedError(c, err, parcelErrorRules)
		return
	}

	response.SuccessWithPage(c, parcels, response.BuildPagination(page, pageSize, total))
}

// GetParcel 获取包裹详情
func (h *Handler) GetParcel(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	parcelID, ok := parseParcelID(c)
	if !ok {
		return
	}

	parcel, err := h.ParcelService.Get(parcelID, uid, isAdminUser(c))
	if err != nil {
		respondWithMappedError(c, err, parcelErrorRules)
		return
	}
	response.Success(c, parcel)
}

// CancelParcel 取消包裹订单
func (h *Handler) CancelParcel(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	parcelID, ok := parseParcelID(c)
	if !ok {
		return
	}

	parcel, msg, err := h.ParcelService.Cancel(parcelID, uid)
	if err != nil {
		respondWithMappedError(c, err, parcelErrorRules)
		return
	}
	response.SuccessWithMsg(c, msg, parcel)
}

// UpdateParcelDestination 修改包裹目的地
func (h *Handler) UpdateParcelDestination(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	parcelID, ok := parseParcelID(c)
	if !ok {
		return
	}

	var req UpdateDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "New destination is required")
		return
	}

	parcel, err := h.ParcelService.UpdateDestination(parcelID, uid, req.Destination)
	if err != nil {
		respondWithMappedError(c, err, parcelErrorRules)
		return
	}
	response.SuccessWithMsg(c, "Parcel destination updated successfully", parcel)
}

// QuoteShipping 按重量预估运费
func (h *Handler) QuoteShipping(c *gin.Context) {
	weight, err := strconv.ParseFloat(c.Query("weight"), 64)
	if err != nil || weight <= 0 {
		response.BadRequest(c, "A positive weight is required")
		return
	}
	response.Success(c, gin.H{
		"weight":        weight,
		"shipping_cost": service.QuoteShippingCost(weight),
	})
}

func parseParcelID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "Invalid parcel id")
		return 0, false
	}
	return uint(id), true
}
