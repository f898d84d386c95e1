package users

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxUsernameLength = 80
	maxEmailLength    = 120
	minPasswordLength = 8
)

var (
	// ErrInvalidUsername indicates an empty or oversized username.
	ErrInvalidUsername = errors.New("users: invalid username")
	// ErrInvalidEmail indicates a missing or malformed email address.
	ErrInvalidEmail = errors.New("users: invalid email")
	// ErrInvalidPassword indicates a password below the minimum length.
	ErrInvalidPassword = errors.New("users: invalid password")
)

// NewUsername validates and normalizes a username.
func NewUsername(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if len(trimmed) > maxUsernameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUsername, maxUsernameLength)
	}
	return trimmed, nil
}

// NewEmail validates and normalizes an email address.
func NewEmail(rawInput string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(rawInput))
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidEmail)
	}
	if len(trimmed) > maxEmailLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidEmail, maxEmailLength)
	}
	atIndex := strings.Index(trimmed, "@")
	if atIndex <= 0 || atIndex == len(trimmed)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, rawInput)
	}
	return trimmed, nil
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(rawInput string) error {
	if len(rawInput) < minPasswordLength {
		return fmt.Errorf("%w: at least %d characters required", ErrInvalidPassword, minPasswordLength)
	}
	return nil
}

// User carries account identity plus the progression scalars owned by
// the submission processor. Level is derived state: it always equals
// the level recomputed from TotalXP and is stored only for reads.
type User struct {
	UserID           string    `gorm:"column:user_id;primaryKey;size:36;not null"`
	Username         string    `gorm:"column:username;size:80;not null;uniqueIndex:idx_users_username"`
	Email            string    `gorm:"column:email;size:120;not null;uniqueIndex:idx_users_email"`
	PasswordHash     string    `gorm:"column:password_hash;size:256;not null"`
	TotalXP          int64     `gorm:"column:total_xp;not null;default:0"`
	Level            int       `gorm:"column:level;not null;default:1"`
	StreakDays       int       `gorm:"column:streak_days;not null;default:0"`
	LastCompletedDay string    `gorm:"column:last_completed_day;size:10;not null;default:''"`
	SetupComplete    bool      `gorm:"column:setup_complete;not null;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}
