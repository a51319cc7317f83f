package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/provider"
	"github.com/parcel-next/internal/queue"
	"github.com/parcel-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskParcelGeocodeRefresh, c.handleParcelGeocodeRefresh)
	mux.HandleFunc(queue.TaskParcelStatusNotify, c.handleParcelStatusNotify)
}

func (c *Consumer) handleParcelGeocodeRefresh(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_parcel_geocode_refresh_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ParcelGeocodeRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_parcel_geocode_refresh_unmarshal_failed", "error", err)
		return err
	}
	if payload.ParcelID == 0 {
		logger.Debugw("worker_parcel_geocode_refresh_skip_invalid_payload", "parcel_id", payload.ParcelID)
		return nil
	}
	if c.ParcelService == nil {
		logger.Warnw("worker_parcel_geocode_refresh_skip_service_nil", "parcel_id", payload.ParcelID)
		return nil
	}
	if err := c.ParcelService.RefreshGeo(ctx, payload.ParcelID); err != nil {
		switch {
		case errors.Is(err, service.ErrParcelNotFound):
			logger.Debugw("worker_parcel_geocode_refresh_skip_parcel_not_found", "parcel_id", payload.ParcelID)
			return nil
		default:
			logger.Warnw("worker_parcel_geocode_refresh_failed", "parcel_id", payload.ParcelID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleParcelStatusNotify(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_parcel_status_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ParcelStatusNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_parcel_status_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.ParcelID == 0 {
		logger.Debugw("worker_parcel_status_notify_skip_invalid_payload", "parcel_id", payload.ParcelID)
		return nil
	}
	parcel, err := c.ParcelRepo.GetByID(payload.ParcelID)
	if err != nil {
		logger.Warnw("worker_parcel_status_notify_fetch_parcel_failed", "parcel_id", payload.ParcelID, "error", err)
		return err
	}
	if parcel == nil {
		logger.Debugw("worker_parcel_status_notify_skip_parcel_not_found", "parcel_id", payload.ParcelID)
		return nil
	}
	user, err := c.UserRepo.GetByID(parcel.UserID)
	if err != nil {
		logger.Warnw("worker_parcel_status_notify_fetch_user_failed", "parcel_id", parcel.ID, "user_id", parcel.UserID, "error", err)
		return err
	}
	if user == nil {
		logger.Debugw("worker_parcel_status_notify_skip_user_not_found", "parcel_id", parcel.ID, "user_id", parcel.UserID)
		return nil
	}
	// 邮件通道尚未接入，先落结构化日志供运营侧消费
	logger.Infow("worker_parcel_status_notify",
		"parcel_id", parcel.ID,
		"tracking_no", parcel.TrackingNo,
		"status", payload.Status,
		"receiver_email", user.Email,
	)
	return nil
}
