package repository

import (
	"time"

	"unibox-backend/internal/message/domain"

	"gorm.io/gorm"
)

// conversationRepository implements ConversationRepository interface
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new instance of conversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(conversation *domain.Conversation) error {
	return r.db.Create(conversation).Error
}

func (r *conversationRepository) FindByID(id string) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.db.Where("id = ?", id).First(&conversation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conversation, nil
}

func (r *conversationRepository) FindByContact(contactID string) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.db.Where("contact_id = ?", contactID).First(&conversation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conversation, nil
}

func (r *conversationRepository) FindByUser(userID string, limit, offset int) ([]*domain.Conversation, int64, error) {
	var total int64
	if err := r.db.Model(&domain.Conversation{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var conversations []*domain.Conversation
	err := r.db.Where("user_id = ?", userID).
		Order("last_message_at desc").
		Limit(limit).
		Offset(offset).
		Find(&conversations).Error
	return conversations, total, err
}

func (r *conversationRepository) Touch(id string, lastMessageAt time.Time) error {
	// Only move the watermark forward; batches can arrive out of order
	return r.db.Model(&domain.Conversation{}).
		Where("id = ? AND last_message_at < ?", id, lastMessageAt).
		Update("last_message_at", lastMessageAt).Error
}

func (r *conversationRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&domain.Conversation{}).Error
}
