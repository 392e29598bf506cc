package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jinzhu/gorm"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/auth"
	"github.com/ken-eddy/simplesales/database"
	"github.com/ken-eddy/simplesales/models"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, database.Classify(err)
	}
	return &u, nil
}

func (s *UserStore) FindUser(ctx context.Context, userID uint) (*models.User, error) {
	var u models.User
	if err := s.db.Preload("Business").Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, database.Classify(err)
	}
	return &u, nil
}

func (s *UserStore) BusinessNameExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.Model(&models.Business{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return false, database.Classify(err)
	}
	return n > 0, nil
}

func (s *UserStore) CreateAccount(ctx context.Context, business *models.Business, user *models.User) error {
	tx := s.db.BeginTx(ctx, &sql.TxOptions{})
	if tx.Error != nil {
		return database.Classify(tx.Error)
	}
	defer tx.RollbackUnlessCommitted()

	if err := tx.Create(business).Error; err != nil {
		if database.IsUniqueViolation(err, database.UniqueBusinessName) {
			return auth.ErrBusinessNameTaken
		}
		return database.Classify(err)
	}
	user.BusinessID = business.ID
	if err := tx.Create(user).Error; err != nil {
		if database.IsUniqueViolation(err, database.UniqueUserEmail) {
			return auth.ErrEmailTaken
		}
		return database.Classify(err)
	}
	return database.Classify(tx.Commit().Error)
}

func (s *UserStore) SetResetToken(ctx context.Context, userID uint, hash string, expiresAt time.Time) error {
	err := s.db.Model(&models.User{}).Where("id = ?", userID).UpdateColumns(map[string]interface{}{
		"reset_token_hash":       hash,
		"reset_token_expires_at": expiresAt,
	}).Error
	return database.Classify(err)
}

func (s *UserStore) SetPassword(ctx context.Context, userID uint, hash string) error {
	err := s.db.Model(&models.User{}).Where("id = ?", userID).UpdateColumns(map[string]interface{}{
		"password_hash":          hash,
		"reset_token_hash":       nil,
		"reset_token_expires_at": nil,
	}).Error
	return database.Classify(err)
}

func (s *UserStore) SetAdmin(ctx context.Context, userID uint) error {
	return database.Classify(s.db.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("is_admin", true).Error)
}

type EntitlementStore struct {
	db *gorm.DB
}

func NewEntitlementStore(db *gorm.DB) *EntitlementStore {
	return &EntitlementStore{db: db}
}

func (s *EntitlementStore) ListByBusiness(ctx context.Context, businessID uint) ([]models.ExportAccess, error) {
	var rows []models.ExportAccess
	if err := s.db.Where("business_id = ?", businessID).Order("end_date DESC").Find(&rows).Error; err != nil {
		return nil, database.Classify(err)
	}
	return rows, nil
}

type PaymentStore struct {
	db *gorm.DB
}

func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

func (s *PaymentStore) BusinessExists(ctx context.Context, businessID uint) (bool, error) {
	var n int
	if err := s.db.Model(&models.Business{}).Where("id = ?", businessID).Count(&n).Error; err != nil {
		return false, database.Classify(err)
	}
	return n > 0, nil
}

func (s *PaymentStore) FindByReference(ctx context.Context, reference string) (*models.ExportAccess, error) {
	var row models.ExportAccess
	if err := s.db.Where("transaction_reference = ?", reference).First(&row).Error; err != nil {
		return nil, database.Classify(err)
	}
	return &row, nil
}

// Activate holds the business row lock while it reads the latest period and
// inserts the next one, so concurrent webhooks queue periods back to back.
func (s *PaymentStore) Activate(ctx context.Context, businessID uint, period string, today time.Time,
	build func(latest *models.ExportAccess) *models.ExportAccess) error {
	tx := s.db.BeginTx(ctx, &sql.TxOptions{})
	if tx.Error != nil {
		return database.Classify(tx.Error)
	}
	defer tx.RollbackUnlessCommitted()

	var biz models.Business
	if err := tx.Set("gorm:query_option", "FOR UPDATE").Where("id = ?", businessID).First(&biz).Error; err != nil {
		return database.Classify(err)
	}

	var latest *models.ExportAccess
	var row models.ExportAccess
	err := tx.Where("business_id = ? AND period_type = ? AND end_date >= ?", businessID, period, today).
		Order("end_date DESC").
		First(&row).Error
	switch {
	case err == nil:
		latest = &row
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return database.Classify(err)
	}

	next := build(latest)
	if err := tx.Create(next).Error; err != nil {
		if database.IsUniqueViolation(err, database.UniqueExportRef) {
			return apperr.Conflict("Transaction already processed")
		}
		return database.Classify(err)
	}
	return database.Classify(tx.Commit().Error)
}
