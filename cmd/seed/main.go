package main

import (
	"time"

	"github.com/parcel-next/internal/config"
	"github.com/parcel-next/internal/constants"
	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/models"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 演示用户
	hash, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}
	demoUser := models.User{
		Email:        "demo@parcel.local",
		PasswordHash: string(hash),
		DisplayName:  "Demo User",
	}
	var existingUser models.User
	if err := models.DB.Where("email = ?", demoUser.Email).First(&existingUser).Error; err != nil {
		if err := models.DB.Create(&demoUser).Error; err != nil {
			stdLog.Fatalf("Failed to create demo user: %v", err)
		}
		stdLog.Printf("Created demo user: %s", demoUser.Email)
	} else {
		demoUser = existingUser
		stdLog.Printf("Demo user already exists: %s", demoUser.Email)
	}

	// 演示包裹
	now := time.Now()
	deliveredAt := now.Add(-24 * time.Hour)
	parcels := []models.Parcel{
		{
			TrackingNo:     "PN20260101000000DEMO01",
			UserID:         demoUser.ID,
			Status:         constants.ParcelStatusPending,
			RecipientName:  "Alice Wanjiru",
			RecipientPhone: "+254700000001",
			PickupLocation: "Nairobi CBD",
			Destination:    "Mombasa",
			WeightKG:       2.5,
			EstimatedCost:  models.NewMoneyFromFloat(8.75),
			ShippingCost:   models.NewMoneyFromFloat(8.75),
		},
		{
			TrackingNo:      "PN20260101000000DEMO02",
			UserID:          demoUser.ID,
			Status:          constants.ParcelStatusInTransit,
			RecipientName:   "Brian Otieno",
			RecipientPhone:  "+254700000002",
			PickupLocation:  "Kisumu",
			Destination:     "Nakuru",
			PresentLocation: "Kericho",
			WeightKG:        1.0,
			EstimatedCost:   models.NewMoneyFromFloat(6.50),
			ShippingCost:    models.NewMoneyFromFloat(6.50),
		},
		{
			TrackingNo:     "PN20260101000000DEMO03",
			UserID:         demoUser.ID,
			Status:         constants.ParcelStatusDelivered,
			RecipientName:  "Carol Njeri",
			PickupLocation: "Eldoret",
			Destination:    "Nairobi Westlands",
			WeightKG:       4.2,
			EstimatedCost:  models.NewMoneyFromFloat(11.30),
			ShippingCost:   models.NewMoneyFromFloat(11.30),
			DeliveredAt:    &deliveredAt,
		},
	}

	for _, parcel := range parcels {
		var existing models.Parcel
		if err := models.DB.Where("tracking_no = ?", parcel.TrackingNo).First(&existing).Error; err != nil {
			if err := models.DB.Create(&parcel).Error; err != nil {
				stdLog.Printf("Failed to create parcel %s: %v", parcel.TrackingNo, err)
			} else {
				stdLog.Printf("Created parcel: %s", parcel.TrackingNo)
			}
		} else {
			stdLog.Printf("Parcel already exists: %s", parcel.TrackingNo)
		}
	}

	stdLog.Printf("Seed completed")
}
