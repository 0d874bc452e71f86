package repository

import (
	"unibox-backend/internal/notification/domain"

	"gorm.io/gorm"
)

// DeviceTokenRepository defines data access for FCM device registrations
type DeviceTokenRepository interface {
	Save(token *domain.DeviceToken) error
	GetTokensByUserID(userID string) ([]*domain.DeviceToken, error)
	DeleteToken(token string) error
}

// deviceTokenRepository implements DeviceTokenRepository interface
type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a new instance of deviceTokenRepository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

func (r *deviceTokenRepository) Save(token *domain.DeviceToken) error {
	var existing domain.DeviceToken
	err := r.db.Where("token = ?", token.Token).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(token).Error
	} else if err != nil {
		return err
	}

	existing.UserID = token.UserID
	existing.DeviceInfo = token.DeviceInfo
	return r.db.Save(&existing).Error
}

func (r *deviceTokenRepository) GetTokensByUserID(userID string) ([]*domain.DeviceToken, error) {
	var tokens []*domain.DeviceToken
	err := r.db.Where("user_id = ?", userID).Find(&tokens).Error
	return tokens, err
}

func (r *deviceTokenRepository) DeleteToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&domain.DeviceToken{}).Error
}
