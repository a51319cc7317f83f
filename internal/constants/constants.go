package constants

// 包裹状态常量
const (
	ParcelStatusPending   = "Pending"
	ParcelStatusInTransit = "In Transit"
	ParcelStatusDelivered = "Delivered"
	ParcelStatusCancelled = "Cancelled"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 异步任务类型常量
const (
	TaskParcelGeocodeRefresh = "parcel:geocode_refresh"
	TaskParcelStatusNotify   = "parcel:status_notify"
)

// 流事件常量
const (
	StreamEventMessage = "message"
	StreamEventEnd     = "end"
)
