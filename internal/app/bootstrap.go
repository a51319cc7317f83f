package app

import (
	"context"
	"errors"
	"time"

	"github.com/parcel-next/internal/config"
	"github.com/parcel-next/internal/provider"
	"github.com/parcel-next/internal/router"
	"github.com/parcel-next/internal/stream"
	"github.com/parcel-next/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
		services = append(services, newStreamHubService(container.Hub, cfg.Stream))
	}

	if mode == ModeAll || mode == ModeWorker {
		consumer := worker.NewConsumer(container)
		workerService, err := worker.NewService(&cfg.Queue, consumer)
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}

// streamHubService 推送中心生命周期服务
// 停机时关闭推送中心，让挂起的 SSE 处理器尽快退出。
type streamHubService struct {
	hub      *stream.Hub
	drainFor time.Duration
}

func newStreamHubService(hub *stream.Hub, cfg config.StreamConfig) *streamHubService {
	drain := time.Duration(cfg.ShutdownWaitMilli) * time.Millisecond
	if drain <= 0 {
		drain = 200 * time.Millisecond
	}
	return &streamHubService{hub: hub, drainFor: drain}
}

func (s *streamHubService) Name() string {
	return "stream_hub"
}

func (s *streamHubService) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *streamHubService) Stop(_ context.Context) error {
	if s == nil || s.hub == nil {
		return nil
	}
	s.hub.Close()
	time.Sleep(s.drainFor)
	return nil
}
