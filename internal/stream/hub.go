package stream

import (
	"sync"

	"github.com/parcel-next/internal/logger"
)

const defaultSubscriberBuffer = 16

// Hub 包裹实时推送中心（进程内订阅与分发）
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint]map[*Subscriber]struct{}
	buffer      int
	closed      bool
}

// Subscriber 单个包裹的订阅者
type Subscriber struct {
	parcelID uint
	ch       chan Delta
	once     sync.Once
}

// Deltas 订阅者的增量通道
func (s *Subscriber) Deltas() <-chan Delta {
	return s.ch
}

// NewHub 创建推送中心
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subscribers: make(map[uint]map[*Subscriber]struct{}),
		buffer:      buffer,
	}
}

// Subscribe 订阅指定包裹的增量更新
func (h *Hub) Subscribe(parcelID uint) *Subscriber {
	sub := &Subscriber{
		parcelID: parcelID,
		ch:       make(chan Delta, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	set, ok := h.subscribers[parcelID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subscribers[parcelID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe 取消订阅并释放通道
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if set, ok := h.subscribers[sub.parcelID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subscribers, sub.parcelID)
		}
	}
	h.mu.Unlock()
	sub.once.Do(func() { close(sub.ch) })
}

// Publish 向指定包裹的所有订阅者分发增量
// 推送是尽力而为的：订阅者缓冲满时丢弃本条，不阻塞发布方。
func (h *Hub) Publish(parcelID uint, delta Delta) {
	if delta.IsEmpty() {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.subscribers[parcelID] {
		select {
		case sub.ch <- delta:
		default:
			logger.Debugw("stream_delta_dropped_slow_subscriber", "parcel_id", parcelID)
		}
	}
}

// SubscriberCount 返回指定包裹的订阅者数量
func (h *Hub) SubscriberCount(parcelID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[parcelID])
}

// Close 关闭推送中心并断开所有订阅者
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subscribers {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	h.subscribers = make(map[uint]map[*Subscriber]struct{})
}
