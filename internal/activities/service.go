package activities

import (
	"context"
	"errors"
	"time"

	"github.com/ascendlabs/ascend/backend/internal/faults"
	"github.com/ascendlabs/ascend/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("activities: database handle is required")
	errMissingIDProvider = errors.New("activities: id provider is required")
)

// ReferenceCleaner removes rows in other tables that point at an
// activity. Implemented by the tracking service so a custom-activity
// delete cascades inside one transaction.
type ReferenceCleaner interface {
	PurgeActivityReferences(tx *gorm.DB, userID, activityID string) error
}

// ServiceConfig describes the dependencies for the activity catalog.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Cleaner    ReferenceCleaner
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service owns activity identity, category membership and the custom
// activity lifecycle.
type Service struct {
	db      *gorm.DB
	idGen   ids.Provider
	cleaner ReferenceCleaner
	clock   func() time.Time
	logger  *zap.Logger
}

// NewService constructs the catalog service. The reference cleaner is
// optional; without one, custom-activity deletes do not cascade.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      cfg.Database,
		idGen:   cfg.IDProvider,
		cleaner: cfg.Cleaner,
		clock:   clock,
		logger:  logger,
	}, nil
}

// List returns every default activity plus the customs owned by the
// user, partitioned by category in display order. Side-effect-free.
func (s *Service) List(ctx context.Context, userID string) (map[Category][]Activity, error) {
	var rows []Activity
	err := s.db.WithContext(ctx).
		Where("origin = ? OR owner_id = ?", OriginDefault, userID).
		Order("category, name").
		Find(&rows).Error
	if err != nil {
		return nil, faults.Unavailable("activities.list", err)
	}

	partitioned := make(map[Category][]Activity, len(Categories()))
	for _, category := range Categories() {
		partitioned[category] = []Activity{}
	}
	for _, activity := range rows {
		category := Category(activity.Category)
		partitioned[category] = append(partitioned[category], activity)
	}
	return partitioned, nil
}

// Get loads a single activity visible to the user.
func (s *Service) Get(ctx context.Context, userID, activityID string) (Activity, error) {
	var activity Activity
	err := s.db.WithContext(ctx).Where("activity_id = ?", activityID).Take(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Activity{}, &faults.NotFoundError{Kind: "activity", ID: activityID}
	}
	if err != nil {
		return Activity{}, faults.Unavailable("activities.get", err)
	}
	if !activity.VisibleTo(userID) {
		return Activity{}, &faults.NotFoundError{Kind: "activity", ID: activityID}
	}
	return activity, nil
}

// CreateCustom adds a user-owned activity to one of the fixed
// categories. Custom activities earn the same base XP as defaults.
func (s *Service) CreateCustom(ctx context.Context, ownerID, rawName, rawCategory string) (Activity, error) {
	name, err := NewActivityName(rawName)
	if err != nil {
		return Activity{}, faults.NewValidation("%v", err)
	}
	category, err := NewCategory(rawCategory)
	if err != nil {
		return Activity{}, faults.NewValidation("%v", err)
	}

	activityID, err := s.idGen.NewID()
	if err != nil {
		return Activity{}, faults.Unavailable("activities.create_custom", err)
	}

	activity := Activity{
		ActivityID: activityID,
		Name:       name,
		Category:   category.String(),
		Origin:     OriginCustom,
		OwnerID:    ownerID,
		XPValue:    defaultActivityXP,
	}
	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return Activity{}, faults.Unavailable("activities.create_custom", err)
	}

	s.logger.Info("custom activity created",
		zap.String("user_id", ownerID),
		zap.String("activity_id", activityID),
		zap.String("category", category.String()))
	return activity, nil
}

// DeleteCustom removes a custom activity owned by the requester. Rows
// referencing it (bookmarks, daily commitments) are removed in the same
// transaction so per-category counts are never observed out of step.
func (s *Service) DeleteCustom(ctx context.Context, ownerID, activityID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var activity Activity
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("activity_id = ?", activityID).
			Take(&activity).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &faults.NotFoundError{Kind: "activity", ID: activityID}
		}
		if err != nil {
			return faults.Unavailable("activities.delete_custom", err)
		}

		if !activity.IsCustom() {
			return &faults.PermissionError{Reason: "default activities cannot be deleted"}
		}
		if activity.OwnerID != ownerID {
			return &faults.PermissionError{Reason: "activity is owned by another user"}
		}

		if s.cleaner != nil {
			if err := s.cleaner.PurgeActivityReferences(tx, ownerID, activityID); err != nil {
				return err
			}
		}

		if err := tx.Where("activity_id = ?", activityID).Delete(&Activity{}).Error; err != nil {
			return faults.Unavailable("activities.delete_custom", err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	s.logger.Info("custom activity deleted",
		zap.String("user_id", ownerID),
		zap.String("activity_id", activityID))
	return nil
}

// SeedDefaults inserts the default catalog when the activities table
// holds no default rows yet. Safe to call on every startup.
func (s *Service) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Activity{}).
		Where("origin = ?", OriginDefault).
		Count(&count).Error; err != nil {
		return faults.Unavailable("activities.seed_defaults", err)
	}
	if count > 0 {
		return nil
	}

	seeded, err := DefaultActivities(s.idGen.NewID)
	if err != nil {
		return faults.Unavailable("activities.seed_defaults", err)
	}
	if err := s.db.WithContext(ctx).Create(&seeded).Error; err != nil {
		return faults.Unavailable("activities.seed_defaults", err)
	}

	s.logger.Info("default activities seeded", zap.Int("count", len(seeded)))
	return nil
}
