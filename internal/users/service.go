package users

import (
	"context"
	"errors"
	"time"

	"github.com/ascendlabs/ascend/backend/internal/faults"
	"github.com/ascendlabs/ascend/backend/internal/ids"
	"github.com/ascendlabs/ascend/backend/internal/progression"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("users: database handle is required")
	errMissingIDProvider = errors.New("users: id provider is required")
)

// ServiceConfig describes the dependencies for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service manages account registration, authentication and profiles.
type Service struct {
	db     *gorm.DB
	idGen  ids.Provider
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the account service.
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
	return &Service{db: cfg.Database, idGen: cfg.IDProvider, clock: clock, logger: logger}, nil
}

// Register creates a new account with a bcrypt-hashed password. New
// accounts start at level 1 with no experience and no streak.
func (s *Service) Register(ctx context.Context, rawUsername, rawEmail, password string) (User, error) {
	username, err := NewUsername(rawUsername)
	if err != nil {
		return User{}, faults.NewValidation("%v", err)
	}
	email, err := NewEmail(rawEmail)
	if err != nil {
		return User{}, faults.NewValidation("%v", err)
	}
	if err := ValidatePassword(password); err != nil {
		return User{}, faults.NewValidation("%v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, faults.Unavailable("users.register", err)
	}

	userID, err := s.idGen.NewID()
	if err != nil {
		return User{}, faults.Unavailable("users.register", err)
	}

	user := User{
		UserID:       userID,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		TotalXP:      0,
		Level:        progression.MinimumLevel,
		StreakDays:   0,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).
			Where("username = ? OR email = ?", username, email).
			Count(&count).Error; err != nil {
			return faults.Unavailable("users.register", err)
		}
		if count > 0 {
			return faults.NewValidation("username or email already registered")
		}
		if err := tx.Create(&user).Error; err != nil {
			return faults.Unavailable("users.register", err)
		}
		return nil
	})
	if txErr != nil {
		return User{}, txErr
	}

	s.logger.Info("user registered", zap.String("user_id", user.UserID), zap.String("username", username))
	return user, nil
}

// Authenticate verifies credentials and returns the matching account.
// Unknown usernames and wrong passwords report the same error.
func (s *Service) Authenticate(ctx context.Context, rawUsername, password string) (User, error) {
	username, err := NewUsername(rawUsername)
	if err != nil {
		return User{}, &faults.PermissionError{Reason: "invalid credentials"}
	}

	var user User
	err = s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, &faults.PermissionError{Reason: "invalid credentials"}
	}
	if err != nil {
		return User{}, faults.Unavailable("users.authenticate", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, &faults.PermissionError{Reason: "invalid credentials"}
	}
	return user, nil
}

// Profile loads an account by id.
func (s *Service) Profile(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, &faults.NotFoundError{Kind: "user", ID: userID}
	}
	if err != nil {
		return User{}, faults.Unavailable("users.profile", err)
	}
	return user, nil
}

// UpdateUsername renames the account, enforcing uniqueness.
func (s *Service) UpdateUsername(ctx context.Context, userID, rawUsername string) (User, error) {
	username, err := NewUsername(rawUsername)
	if err != nil {
		return User{}, faults.NewValidation("%v", err)
	}

	var user User
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&User{}).
			Where("username = ? AND user_id <> ?", username, userID).
			Count(&taken).Error; err != nil {
			return faults.Unavailable("users.update_username", err)
		}
		if taken > 0 {
			return faults.NewValidation("username %q already taken", username)
		}

		err := tx.Where("user_id = ?", userID).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &faults.NotFoundError{Kind: "user", ID: userID}
		}
		if err != nil {
			return faults.Unavailable("users.update_username", err)
		}

		user.Username = username
		if err := tx.Model(&User{}).
			Where("user_id = ?", userID).
			Update("username", username).Error; err != nil {
			return faults.Unavailable("users.update_username", err)
		}
		return nil
	})
	if txErr != nil {
		return User{}, txErr
	}
	return user, nil
}
