package repository

import (
	"unibox-backend/internal/message/domain"

	"gorm.io/gorm"
)

// messageRepository implements MessageRepository interface
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(message *domain.Message) error {
	return r.db.Create(message).Error
}

func (r *messageRepository) FindByID(id string) (*domain.Message, error) {
	var message domain.Message
	err := r.db.Where("id = ?", id).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindByProviderID(provider, providerMessageID string) (*domain.Message, error) {
	var message domain.Message
	err := r.db.Where("provider = ? AND provider_message_id = ?", provider, providerMessageID).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindByConversation(conversationID string, limit, offset int) ([]*domain.Message, int64, error) {
	var total int64
	if err := r.db.Model(&domain.Message{}).Where("conversation_id = ?", conversationID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []*domain.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("sent_at asc").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, total, err
}

func (r *messageRepository) CountByConversation(conversationID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error
	return count, err
}

func (r *messageRepository) ConversationIDsByAccount(accountID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&domain.Message{}).
		Where("account_id = ?", accountID).
		Distinct("conversation_id").
		Pluck("conversation_id", &ids).Error
	return ids, err
}

func (r *messageRepository) SumSizeByAccount(accountID string) (int64, error) {
	var sum int64
	err := r.db.Model(&domain.Message{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *messageRepository) UpdateStatus(id string, status domain.DeliveryStatus) error {
	return r.db.Model(&domain.Message{}).Where("id = ?", id).Update("status", status).Error
}

func (r *messageRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&domain.Message{}).Error
}

func (r *messageRepository) DeleteByAccount(accountID string) error {
	return r.db.Where("account_id = ?", accountID).Delete(&domain.Message{}).Error
}
