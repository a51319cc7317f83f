package tracking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/parcel-next/internal/constants"
	"github.com/parcel-next/internal/logger"
)

// ErrStreamRejected 推送连接被服务端拒绝（非 200 或内容类型不符）
var ErrStreamRejected = errors.New("tracking: stream rejected")

// SubscribeOptions 推送订阅参数
type SubscribeOptions struct {
	BaseURL    string
	ParcelID   uint
	Token      string
	HTTPClient *http.Client

	// OnDelta 每条可解析的增量回调一次，按传输到达顺序调用
	OnDelta func(Delta)
	// OnClose 连接结束时回调一次；传输错误静默降级，err 仅用于日志与观测
	OnClose func(err error)
}

// Subscriber 单个包裹的推送订阅
// 连接不自动重连：传输错误后仅剩快照新鲜度，由上层决定是否重建。
type Subscriber struct {
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// Subscribe 打开推送连接并在后台消费事件
// 令牌通过 jwt 查询参数携带（EventSource 场景无法设置请求头）。
func Subscribe(ctx context.Context, opts SubscribeOptions) (*Subscriber, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tracking: base url is empty")
	}
	if opts.Token == "" {
		return nil, ErrTokenUnavailable
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// 长连接不设整体超时，生命周期由 ctx 控制
		httpClient = &http.Client{}
	}

	streamURL := fmt.Sprintf("%s/api/parcels/%d/stream?jwt=%s", baseURL, opts.ParcelID, url.QueryEscape(opts.Token))
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: status %d", ErrStreamRejected, resp.StatusCode)
	}

	sub := &Subscriber{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.consume(resp, opts)
	return sub, nil
}

// Close 关闭订阅；幂等，可安全重复调用
func (s *Subscriber) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.cancel()
	})
	<-s.done
}

// Done 订阅结束信号
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) consume(resp *http.Response, opts SubscribeOptions) {
	defer close(s.done)
	defer resp.Body.Close()
	defer s.cancel()

	var closeErr error
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxResponseBytes)

	event := ""
	var data strings.Builder
	dispatch := func() bool {
		defer func() {
			event = ""
			data.Reset()
		}()
		if data.Len() == 0 {
			return true
		}
		if event == constants.StreamEventEnd {
			return false
		}
		if event != "" && event != constants.StreamEventMessage {
			return true
		}
		delta, err := ParseDelta([]byte(data.String()))
		if err != nil {
			// 单条消息解析失败只记日志并丢弃，连接保持可用
			logger.Debugw("tracking_stream_delta_parse_failed", "parcel_id", opts.ParcelID, "error", err)
			return true
		}
		if opts.OnDelta != nil {
			opts.OnDelta(delta)
		}
		return true
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !dispatch() {
				if opts.OnClose != nil {
					opts.OnClose(nil)
				}
				return
			}
		case strings.HasPrefix(line, ":"):
			// 心跳注释行
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		closeErr = err
		logger.Debugw("tracking_stream_transport_error", "parcel_id", opts.ParcelID, "error", err)
	}
	if opts.OnClose != nil {
		opts.OnClose(closeErr)
	}
}
