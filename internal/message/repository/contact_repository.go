package repository

import (
	"unibox-backend/internal/message/domain"

	"gorm.io/gorm"
)

// contactRepository implements ContactRepository interface
type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new instance of contactRepository
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) CreateContact(contact *domain.Contact) error {
	return r.db.Create(contact).Error
}

func (r *contactRepository) FindContactByID(id string) (*domain.Contact, error) {
	var contact domain.Contact
	err := r.db.Where("id = ?", id).First(&contact).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) AddAddress(addr *domain.ContactAddress) error {
	return r.db.Create(addr).Error
}

func (r *contactRepository) FindAddress(userID, provider, address string) (*domain.ContactAddress, error) {
	var contactAddr domain.ContactAddress
	err := r.db.Where("user_id = ? AND provider = ? AND address = ?", userID, provider, address).First(&contactAddr).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &contactAddr, nil
}

func (r *contactRepository) AddressesByContact(contactID string) ([]*domain.ContactAddress, error) {
	var addrs []*domain.ContactAddress
	err := r.db.Where("contact_id = ?", contactID).Order("created_at asc").Find(&addrs).Error
	return addrs, err
}
