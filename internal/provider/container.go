package provider

import (
	"github.com/parcel-next/internal/cache"
	"github.com/parcel-next/internal/config"
	"github.com/parcel-next/internal/geo"
	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/models"
	"github.com/parcel-next/internal/queue"
	"github.com/parcel-next/internal/repository"
	"github.com/parcel-next/internal/service"
	"github.com/parcel-next/internal/stream"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Hub         *stream.Hub
	GeoClient   *geo.Client

	// Repositories
	UserRepo   repository.UserRepository
	ParcelRepo repository.ParcelRepository

	// Services
	UserAuthService *service.UserAuthService
	ParcelService   *service.ParcelService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Hub:         stream.NewHub(cfg.Stream.SubscriberBuffer),
	}

	geoClient, err := geo.NewClient(cfg.Geo)
	if err != nil {
		logger.Warnw("provider_init_geo_client_failed", "error", err)
	} else {
		c.GeoClient = geoClient
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.ParcelRepo = repository.NewParcelRepository(db)
}

func (c *Container) initServices() {
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)

	var geoProvider service.GeoProvider
	if c.GeoClient != nil {
		geoProvider = c.GeoClient
	}
	c.ParcelService = service.NewParcelService(c.ParcelRepo, c.Hub, c.QueueClient, geoProvider)
}
