package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"park-timer-backend/internal/model"
)

// VisitorStore is the visitor record store the timer engine and the
// payment flow share.
type VisitorStore interface {
	GetVisitorsByDate(ctx context.Context, date string) ([]model.Visitor, error)
	GetVisitor(ctx context.Context, id string) (*model.Visitor, error)
	UpdateVisitor(ctx context.Context, id string, patch VisitorPatch) (*model.Visitor, error)
	AddVisitor(ctx context.Context, v *model.Visitor) (*model.Visitor, error)
}

// SubscriptionStore persists front-desk push subscriptions.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	PutSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Store defines the interface for all database operations.
type Store interface {
	VisitorStore
	SubscriptionStore
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// GetVisitorsByDate returns every visitor of the given operating day in
// registration order.
func (s *gormStore) GetVisitorsByDate(ctx context.Context, date string) ([]model.Visitor, error) {
	var visitors []model.Visitor
	if err := s.db.WithContext(ctx).
		Where("date = ?", date).
		Order("created_at, id").
		Find(&visitors).Error; err != nil {
		return nil, fmt.Errorf("failed to list visitors for %s: %w", date, err)
	}
	return visitors, nil
}

func (s *gormStore) GetVisitor(ctx context.Context, id string) (*model.Visitor, error) {
	var v model.Visitor
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch visitor %s: %w", id, err)
	}
	return &v, nil
}

// UpdateVisitor merges the non-nil patch fields into the stored visitor and
// returns the record as persisted.
func (s *gormStore) UpdateVisitor(ctx context.Context, id string, patch VisitorPatch) (*model.Visitor, error) {
	updates := patch.columns()

	var updated model.Visitor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			res := tx.Model(&model.Visitor{}).Where("id = ?", id).Updates(updates)
			if res.Error != nil {
				return fmt.Errorf("failed to update visitor %s: %w", id, res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
		}
		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to reload visitor %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AddVisitor creates a pending visitor. Timer fields are reset regardless
// of what the caller passed.
func (s *gormStore) AddVisitor(ctx context.Context, v *model.Visitor) (*model.Visitor, error) {
	if v == nil || v.Name == "" || v.Date == "" || !v.Type.Valid() ||
		v.TimeMinutes <= 0 || v.TimeMinutes > model.MaxAllotmentMinutes {
		return nil, ErrInvalidVisitor
	}

	newVisitor := *v
	if newVisitor.ID == "" {
		newVisitor.ID = uuid.NewString()
	}
	newVisitor.Status = model.StatusPending
	newVisitor.StartTime = nil
	newVisitor.EndTime = nil
	newVisitor.RemainingSeconds = newVisitor.AllotmentSeconds()

	if err := s.db.WithContext(ctx).Create(&newVisitor).Error; err != nil {
		return nil, fmt.Errorf("failed to create visitor %q: %w", newVisitor.Name, err)
	}
	return &newVisitor, nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Order("created_at").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return &sub, nil
}

// PutSubscription creates the subscription or refreshes its keys.
func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "label"}),
	}).Create(sub).Error
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}
