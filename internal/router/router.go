package router

import (
	"fmt"
	"strings"

	"github.com/parcel-next/internal/cache"
	"github.com/parcel-next/internal/config"
	adminhandlers "github.com/parcel-next/internal/http/handlers/admin"
	publichandlers "github.com/parcel-next/internal/http/handlers/public"
	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pn"
	}
	redisClient := cache.Client()
	authRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:auth", redisPrefix),
		WindowSeconds: cfg.RateLimit.AuthWindowSeconds,
		MaxRequests:   cfg.RateLimit.AuthMaxRequests,
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 静态文件服务（包裹图片 / 签收凭证）
	r.Static("/uploads", cfg.Upload.Dir)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", RateLimitMiddleware(redisClient, authRule, KeyByIP), publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, authRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}

		api.GET("/shipping/quote", publicHandler.QuoteShipping)

		// 用户接口（需鉴权）
		user := api.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.Me)
			user.POST("/parcels", publicHandler.CreateParcel)
			user.GET("/parcels", publicHandler.ListParcels)
			user.GET("/parcels/:id", publicHandler.GetParcel)
			user.POST("/parcels/:id/cancel", publicHandler.CancelParcel)
			user.PATCH("/parcels/:id/destination", publicHandler.UpdateParcelDestination)
			user.GET("/parcels/:id/stream", publicHandler.StreamParcel)
		}

		// 管理员接口
		admin := api.Group("/admin")
		admin.Use(UserJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo), AdminRequiredMiddleware())
		{
			admin.GET("/parcels", adminHandler.ListParcels)
			admin.PATCH("/parcels/:id/status", adminHandler.UpdateParcelStatus)
			admin.PATCH("/parcels/:id/location", adminHandler.UpdateParcelLocation)
			admin.POST("/parcels/:id/proof", adminHandler.AttachProofOfDelivery)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
