package admin

import (
	"errors"
	"strconv"

	"github.com/parcel-next/internal/http/handlers/shared"
	"github.com/parcel-next/internal/http/response"
	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/repository"
	"github.com/parcel-next/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateStatusRequest 更新包裹状态请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateLocationRequest 更新包裹当前位置请求
type UpdateLocationRequest struct {
	PresentLocation string `json:"present_location" binding:"required"`
}

// AttachProofRequest 上传签收凭证请求
type AttachProofRequest struct {
	ImageURL string `json:"image_url" binding:"required"`
}

// ListParcels 管理端分页查询包裹（可按用户、状态过滤）
func (h *Handler) ListParcels(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = shared.NormalizePagination(page, pageSize)
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 64)

	parcels, total, err := h.ParcelService.List(repository.ParcelListFilter{
		UserID:   uint(userID),
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		logger.Errorw("admin_parcel_list_failed", "error", err)
		response.Error(c, response.CodeInternal, "Failed to list parcels")
		return
	}

	response.SuccessWithPage(c, parcels, response.BuildPagination(page, pageSize, total))
}

// UpdateParcelStatus 更新包裹状态（推送增量并触发通知）
func (h *Handler) UpdateParcelStatus(c *gin.Context) {
	parcelID, ok := parseParcelID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Status is required")
		return
	}

	parcel, err := h.ParcelService.UpdateStatus(parcelID, req.Status)
	if err != nil {
		respondAdminParcelError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Parcel status updated successfully", parcel)
}

// UpdateParcelLocation 更新包裹当前位置（推送增量并触发路线刷新）
func (h *Handler) UpdateParcelLocation(c *gin.Context) {
	parcelID, ok := parseParcelID(c)
	if !ok {
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Present location is required")
		return
	}

	parcel, err := h.ParcelService.UpdateLocation(parcelID, req.PresentLocation)
	if err != nil {
		respondAdminParcelError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Parcel location updated successfully", parcel)
}

// AttachProofOfDelivery 上传签收凭证
func (h *Handler) AttachProofOfDelivery(c *gin.Context) {
	parcelID, ok := parseParcelID(c)
	if !ok {
		return
	}

	var req AttachProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Image URL is required")
		return
	}

	parcel, err := h.ParcelService.AttachProofOfDelivery(parcelID, req.ImageURL)
	if err != nil {
		respondAdminParcelError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Proof of delivery attached", parcel)
}

func respondAdminParcelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrParcelNotFound):
		response.NotFound(c, "Parcel not found")
	case errors.Is(err, service.ErrInvalidStatusTransition):
		response.BadRequest(c, "Invalid status transition")
	case errors.Is(err, service.ErrInvalidParcelInput):
		response.BadRequest(c, "Invalid request payload")
	default:
		logger.Errorw("admin_parcel_handler_unexpected_error", "error", err)
		response.Error(c, response.CodeInternal, "Internal server error")
	}
}

func parseParcelID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "Invalid parcel id")
		return 0, false
	}
	return uint(id), true
}
