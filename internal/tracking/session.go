package tracking

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/parcel-next/internal/logger"
)

// State 快照加载状态
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// CancelState 取消流程状态机
type CancelState string

const (
	CancelIdle           CancelState = "idle"
	CancelConfirmPending CancelState = "confirm_pending"
	CancelRequesting     CancelState = "requesting"
)

// Confirmer 取消前的阻塞式确认
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmerFunc 函数式 Confirmer
type ConfirmerFunc func(prompt string) bool

// Confirm 实现 Confirmer
func (f ConfirmerFunc) Confirm(prompt string) bool {
	return f(prompt)
}

// Notice 面向用户的一次性通知
type Notice struct {
	Level   string `json:"level"` // info / error
	Message string `json:"message"`
}

// SessionOptions 会话配置
type SessionOptions struct {
	Client    *Client
	Tokens    TokenSource
	Confirmer Confirmer

	// ResolveImageURL 图片地址归一化钩子，可选
	ResolveImageURL ImageURLResolver
	// StreamHTTPClient 推送连接使用的 HTTP 客户端，可选
	StreamHTTPClient *http.Client
}

// SessionView 会话当前可观测状态的一致性快照
type SessionView struct {
	ParcelID        uint
	State           State
	FailReason      string
	Record          *Record
	ViewModel       ViewModel
	StreamConnected bool
	CancelState     CancelState
}

// Session 单个包裹的追踪会话
// 持有快照、推送订阅与合并状态；切换包裹时先整体拆除旧会话再生效新会话。
// 增量按到达顺序折叠进单一运行记录，内存不随流长度增长。
type Session struct {
	client       *Client
	tokens       TokenSource
	confirmer    Confirmer
	resolveImage ImageURLResolver
	streamHTTP   *http.Client

	mu              sync.Mutex
	generation      int
	parcelID        uint
	state           State
	failReason      string
	record          *Record
	view            ViewModel
	pending         []Delta
	streamConnected bool
	cancelState     CancelState
	notice          *Notice
	subscriber      *Subscriber

	updates chan struct{}
}

// NewSession 创建追踪会话
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Client == nil {
		return nil, errors.New("tracking: client is nil")
	}
	if opts.Tokens == nil {
		return nil, errors.New("tracking: token source is nil")
	}
	return &Session{
		client:       opts.Client,
		tokens:       opts.Tokens,
		confirmer:    opts.Confirmer,
		resolveImage: opts.ResolveImageURL,
		streamHTTP:   opts.StreamHTTPClient,
		state:        StateIdle,
		cancelState:  CancelIdle,
		view:         BuildViewModel(nil, opts.ResolveImageURL),
		updates:      make(chan struct{}, 1),
	}, nil
}

// Updates 状态变更信号（合并触发，消费方收到后调用 View 取最新状态）
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// View 返回会话可观测状态的拷贝
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := SessionView{
		ParcelID:        s.parcelID,
		State:           s.state,
		FailReason:      s.failReason,
		ViewModel:       s.view,
		StreamConnected: s.streamConnected,
		CancelState:     s.cancelState,
	}
	if s.record != nil {
		record := *s.record
		view.Record = &record
	}
	return view
}

// TakeNotice 取走并清除当前通知；无通知时返回 nil
func (s *Session) TakeNotice() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	notice := s.notice
	s.notice = nil
	return notice
}

// Track 切换到指定包裹
// 原子拆除旧会话：先关闭旧推送连接并作废其增量，再发起新快照拉取与订阅。
func (s *Session) Track(ctx context.Context, parcelID uint) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	old := s.subscriber
	s.subscriber = nil
	s.parcelID = parcelID
	s.state = StateLoading
	s.failReason = ""
	s.record = nil
	s.pending = nil
	s.streamConnected = false
	s.cancelState = CancelIdle
	s.view = BuildViewModel(nil, s.resolveImage)
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.notifyUpdate()

	go s.loadSnapshot(ctx, gen, parcelID)
	go s.openStream(ctx, gen, parcelID)
}

// CancelTracked 对当前包裹执行取消流程
// 确认 → 请求 → 成功则整体替换权威记录，失败则记录原样保留并附服务端原因。
// Requesting 期间重入直接忽略，同一标识同时只允许一个未决请求。
func (s *Session) CancelTracked(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateReady || s.cancelState != CancelIdle {
		s.mu.Unlock()
		return
	}
	gen := s.generation
	parcelID := s.parcelID
	s.cancelState = CancelConfirmPending
	s.mu.Unlock()
	s.notifyUpdate()

	confirmed := false
	if s.confirmer != nil {
		confirmed = s.confirmer.Confirm("Are you sure you want to cancel this parcel order?")
	}
	if !confirmed {
		s.resetCancelState(gen)
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.cancelState = CancelRequesting
	s.mu.Unlock()
	s.notifyUpdate()

	record, msg, err := s.client.CancelParcel(ctx, parcelID)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.cancelState = CancelIdle
	if err != nil {
		s.notice = &Notice{Level: "error", Message: cancelFailureReason(err)}
		s.mu.Unlock()
		s.notifyUpdate()
		return
	}
	// 服务端返回的状态整体替换权威记录，历史增量随之失效
	s.record = record
	s.pending = nil
	s.view = BuildViewModel(s.record, s.resolveImage)
	s.notice = &Notice{Level: "info", Message: msg}
	s.mu.Unlock()
	s.notifyUpdate()
}

// Close 结束会话并释放推送连接
func (s *Session) Close() {
	s.mu.Lock()
	s.generation++
	old := s.subscriber
	s.subscriber = nil
	s.state = StateIdle
	s.record = nil
	s.pending = nil
	s.streamConnected = false
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (s *Session) loadSnapshot(ctx context.Context, gen int, parcelID uint) {
	record, err := s.client.GetParcel(ctx, parcelID)

	s.mu.Lock()
	if gen != s.generation {
		// 迟到的过期响应不得覆盖当前会话
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = StateFailed
		s.failReason = snapshotFailureReason(err)
		s.record = nil
		s.pending = nil
		sub := s.subscriber
		s.subscriber = nil
		s.streamConnected = false
		s.mu.Unlock()
		// 快照失败后不会再有折叠时机，连推送一并拆除
		if sub != nil {
			sub.Close()
		}
		s.notifyUpdate()
		return
	}
	// 快照落地后回放缓冲的先到增量
	merged := Fold(*record, s.pending)
	s.pending = nil
	s.record = &merged
	s.state = StateReady
	s.failReason = ""
	s.view = BuildViewModel(s.record, s.resolveImage)
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Session) openStream(ctx context.Context, gen int, parcelID uint) {
	token, err := s.tokens.Token()
	if err != nil || token == "" {
		// 无凭证不建连，非错误：仅失去实时性
		return
	}

	sub, err := Subscribe(ctx, SubscribeOptions{
		BaseURL:    s.client.BaseURL(),
		ParcelID:   parcelID,
		Token:      token,
		HTTPClient: s.streamHTTP,
		OnDelta: func(delta Delta) {
			s.applyDelta(gen, delta)
		},
		OnClose: func(err error) {
			s.markStreamClosed(gen, err)
		},
	})
	if err != nil {
		logger.Debugw("tracking_stream_connect_failed", "parcel_id", parcelID, "error", err)
		return
	}

	s.mu.Lock()
	if gen != s.generation || s.state == StateFailed {
		s.mu.Unlock()
		sub.Close()
		return
	}
	s.subscriber = sub
	s.streamConnected = true
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Session) applyDelta(gen int, delta Delta) {
	if delta.IsEmpty() {
		return
	}
	s.mu.Lock()
	if gen != s.generation {
		// 已关闭连接的残留增量不得影响新会话
		s.mu.Unlock()
		return
	}
	if s.record == nil {
		if s.state == StateFailed {
			// 快照已失败：缓冲区永远等不到折叠，直接丢弃
			s.mu.Unlock()
			return
		}
		s.pending = append(s.pending, delta)
		s.mu.Unlock()
		return
	}
	merged := Apply(*s.record, delta)
	s.record = &merged
	s.view = BuildViewModel(s.record, s.resolveImage)
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Session) markStreamClosed(gen int, err error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.streamConnected = false
	s.subscriber = nil
	s.mu.Unlock()
	if err != nil {
		logger.Debugw("tracking_stream_closed", "error", err)
	}
	s.notifyUpdate()
}

func (s *Session) resetCancelState(gen int) {
	s.mu.Lock()
	if gen == s.generation && s.cancelState == CancelConfirmPending {
		s.cancelState = CancelIdle
	}
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Session) notifyUpdate() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func snapshotFailureReason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Msg
	}
	return err.Error()
}

func cancelFailureReason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Msg
	}
	return err.Error()
}
