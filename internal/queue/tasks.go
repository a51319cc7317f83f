package queue

import (
	"encoding/json"

	"github.com/parcel-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskParcelGeocodeRefresh 包裹坐标与线路刷新任务
	TaskParcelGeocodeRefresh = constants.TaskParcelGeocodeRefresh
	// TaskParcelStatusNotify 包裹状态变更通知任务
	TaskParcelStatusNotify = constants.TaskParcelStatusNotify
)

// ParcelGeocodeRefreshPayload 坐标刷新任务载荷
type ParcelGeocodeRefreshPayload struct {
	ParcelID uint `json:"parcel_id"`
}

// ParcelStatusNotifyPayload 状态变更通知任务载荷
type ParcelStatusNotifyPayload struct {
	ParcelID uint   `json:"parcel_id"`
	Status   string `json:"status"`
}

// NewParcelGeocodeRefreshTask 创建坐标刷新任务
func NewParcelGeocodeRefreshTask(payload ParcelGeocodeRefreshPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskParcelGeocodeRefresh, body), nil
}

// NewParcelStatusNotifyTask 创建状态变更通知任务
func NewParcelStatusNotifyTask(payload ParcelStatusNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskParcelStatusNotify, body), nil
}
