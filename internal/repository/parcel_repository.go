package repository

import (
	"errors"
	"strings"

	"github.com/parcel-next/internal/models"

	"gorm.io/gorm"
)

// ParcelListFilter 包裹列表查询条件
type ParcelListFilter struct {
	UserID   uint
	Status   string
	Page     int
	PageSize int
}

// ParcelRepository 包裹数据访问接口
type ParcelRepository interface {
	Create(parcel *models.Parcel) error
	GetByID(id uint) (*models.Parcel, error)
	GetByTrackingNo(trackingNo string) (*models.Parcel, error)
	ListByUser(filter ParcelListFilter) ([]models.Parcel, int64, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormParcelRepository
}

// GormParcelRepository GORM 实现
type GormParcelRepository struct {
	db *gorm.DB
}

// NewParcelRepository 创建包裹仓库
func NewParcelRepository(db *gorm.DB) *GormParcelRepository {
	return &GormParcelRepository{db: db}
}

// WithTx 绑定事务
func (r *GormParcelRepository) WithTx(tx *gorm.DB) *GormParcelRepository {
	if tx == nil {
		return r
	}
	return &GormParcelRepository{db: tx}
}

// Create 创建包裹
func (r *GormParcelRepository) Create(parcel *models.Parcel) error {
	return r.db.Create(parcel).Error
}

// GetByID 根据 ID 获取包裹
func (r *GormParcelRepository) GetByID(id uint) (*models.Parcel, error) {
	var parcel models.Parcel
	if err := r.db.First(&parcel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &parcel, nil
}

// GetByTrackingNo 根据运单编号获取包裹
func (r *GormParcelRepository) GetByTrackingNo(trackingNo string) (*models.Parcel, error) {
	var parcel models.Parcel
	normalized := strings.TrimSpace(trackingNo)
	if err := r.db.Where("tracking_no = ?", normalized).First(&parcel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &parcel, nil
}

// ListByUser 按用户分页查询包裹
func (r *GormParcelRepository) ListByUser(filter ParcelListFilter) ([]models.Parcel, int64, error) {
	query := r.db.Model(&models.Parcel{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var parcels []models.Parcel
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&parcels).Error; err != nil {
		return nil, 0, err
	}
	return parcels, total, nil
}

// Updates 按字段更新包裹
func (r *GormParcelRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Parcel{}).Where("id = ?", id).Updates(updates).Error
}
