package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrTokenUnavailable 凭证源无法提供令牌
	ErrTokenUnavailable = errors.New("tracking: token unavailable")
	// ErrRequestFailed 请求发送失败或响应不可读
	ErrRequestFailed = errors.New("tracking: request failed")
	// ErrResponseInvalid 响应不是合法的接口信封
	ErrResponseInvalid = errors.New("tracking: response invalid")
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxResponseBytes      = 1 << 20
)

// TokenSource 凭证源
// 每次发起请求或新建推送连接时重新读取，核心不缓存令牌。
type TokenSource interface {
	Token() (string, error)
}

// StaticToken 固定令牌凭证源
type StaticToken string

// Token 返回固定令牌
func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrTokenUnavailable
	}
	return string(t), nil
}

// APIError 服务端返回的业务错误（status_code 非 0）
type APIError struct {
	StatusCode int
	Msg        string
}

// Error 实现 error 接口
func (e *APIError) Error() string {
	return fmt.Sprintf("tracking: api error %d: %s", e.StatusCode, e.Msg)
}

// Client 包裹接口客户端（快照拉取与取消请求）
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewClient 创建接口客户端
func NewClient(baseURL string, tokens TokenSource) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tracking: base url is empty")
	}
	if tokens == nil {
		return nil, errors.New("tracking: token source is nil")
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		tokens:     tokens,
	}, nil
}

// BaseURL 客户端指向的服务地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope 服务端统一响应信封
type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

// GetParcel 拉取包裹权威快照
func (c *Client) GetParcel(ctx context.Context, parcelID uint) (*Record, error) {
	body, _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/parcels/%d", parcelID))
	if err != nil {
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &record, nil
}

// CancelParcel 发起取消请求
// 成功时返回服务端回传的新记录与提示消息；失败返回带服务端原因的错误。
func (c *Client) CancelParcel(ctx context.Context, parcelID uint) (*Record, string, error) {
	body, msg, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/parcels/%d/cancel", parcelID))
	if err != nil {
		return nil, "", err
	}
	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &record, msg, nil
}

func (c *Client) do(ctx context.Context, method, path string) (json.RawMessage, string, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, "", ErrTokenUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("%w: status %d", ErrResponseInvalid, resp.StatusCode)
	}
	if env.StatusCode != 0 {
		return nil, "", &APIError{StatusCode: env.StatusCode, Msg: env.Msg}
	}
	return env.Data, env.Msg, nil
}
