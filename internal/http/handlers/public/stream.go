package public

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/parcel-next/internal/constants"
	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/models"
	"github.com/parcel-next/internal/stream"

	"github.com/gin-gonic/gin"
)

// StreamParcel 以 SSE 推送包裹实时增量
// 首帧下发当前快照字段，之后转发推送中心的增量，结束时发送 end 事件。
func (h *Handler) StreamParcel(c *gin.Context) {
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

	sub := h.Hub.Subscribe(parcelID)
	defer h.Hub.Unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	if !writeStreamDelta(c.Writer, initialStreamDelta(parcel)) {
		return
	}

	heartbeat := time.Duration(h.Config.Stream.HeartbeatSeconds) * time.Second
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case delta, open := <-sub.Deltas():
			if !open {
				writeStreamEnd(c.Writer)
				return
			}
			if !writeStreamDelta(c.Writer, delta) {
				return
			}
			if delta.Status != nil && (*delta.Status == constants.ParcelStatusDelivered || *delta.Status == constants.ParcelStatusCancelled) {
				writeStreamEnd(c.Writer)
				return
			}
		}
	}
}

// initialStreamDelta 由当前包裹记录构造首帧增量
func initialStreamDelta(parcel *models.Parcel) stream.Delta {
	delta := stream.Delta{
		Status:             stream.StringPtr(parcel.Status),
		CurrentCoordinates: parcel.CurrentCoordinates,
		RouteDetails:       parcel.RouteDetails,
		DistanceKM:         parcel.DistanceKM,
		ETAMinutes:         parcel.ETAMinutes,
	}
	if parcel.PresentLocation != "" {
		delta.PresentLocation = stream.StringPtr(parcel.PresentLocation)
	}
	return delta
}

func writeStreamDelta(w interface {
	io.Writer
	Flush()
}, delta stream.Delta) bool {
	payload, err := json.Marshal(delta)
	if err != nil {
		logger.Errorw("stream_delta_marshal_failed", "error", err)
		return false
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", constants.StreamEventMessage, payload); err != nil {
		return false
	}
	w.Flush()
	return true
}

func writeStreamEnd(w interface {
	io.Writer
	Flush()
}) {
	fmt.Fprintf(w, "event: %s\ndata: {}\n\n", constants.StreamEventEnd)
	w.Flush()
}
