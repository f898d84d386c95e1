package activities

import (
	"errors"
	"fmt"
	"strings"
)

const maxActivityNameLength = 100

var (
	// ErrInvalidCategory indicates a category outside the three fixed values.
	ErrInvalidCategory = errors.New("activities: invalid category")
	// ErrInvalidActivityName indicates an empty or oversized activity name.
	ErrInvalidActivityName = errors.New("activities: invalid activity name")
)

// Category identifies one of the three fixed activity categories.
type Category string

const (
	CategoryMindBody       Category = "Mind + Body"
	CategoryGrowthCreation Category = "Growth + Creation"
	CategoryPurposePeople  Category = "Purpose + People"
)

// Categories lists the fixed categories in display order.
func Categories() []Category {
	return []Category{CategoryMindBody, CategoryGrowthCreation, CategoryPurposePeople}
}

// NewCategory validates raw input and returns a Category.
func NewCategory(rawInput string) (Category, error) {
	trimmed := strings.TrimSpace(rawInput)
	switch Category(trimmed) {
	case CategoryMindBody, CategoryGrowthCreation, CategoryPurposePeople:
		return Category(trimmed), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, rawInput)
	}
}

// String returns the underlying category label.
func (c Category) String() string {
	return string(c)
}

// NewActivityName validates and normalizes an activity name.
func NewActivityName(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidActivityName)
	}
	if len(trimmed) > maxActivityNameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidActivityName, maxActivityNameLength)
	}
	return trimmed, nil
}

// Origin distinguishes seeded activities from user-created ones.
type Origin string

const (
	// OriginDefault marks process-wide seed activities; immutable and undeletable.
	OriginDefault Origin = "default"
	// OriginCustom marks activities created and owned by a single user.
	OriginCustom Origin = "custom"
)

// Activity models one bookmarkable activity. Default activities have an
// empty owner; custom activities are visible only to their owner.
type Activity struct {
	ActivityID  string `gorm:"column:activity_id;primaryKey;size:36;not null"`
	Name        string `gorm:"column:name;size:100;not null"`
	Category    string `gorm:"column:category;size:50;not null;index:idx_activities_category"`
	Description string `gorm:"column:description;type:text;not null;default:''"`
	Origin      Origin `gorm:"column:origin;size:16;not null;default:'default'"`
	OwnerID     string `gorm:"column:owner_id;size:36;not null;default:'';index:idx_activities_owner"`
	XPValue     int64  `gorm:"column:xp_value;not null;default:10"`
}

// TableName provides the explicit table binding for GORM.
func (Activity) TableName() string {
	return "activities"
}

// IsCustom reports whether the activity was created by a user.
func (a Activity) IsCustom() bool {
	return a.Origin == OriginCustom
}

// VisibleTo reports whether the activity appears in the given user's catalog.
func (a Activity) VisibleTo(userID string) bool {
	if a.Origin == OriginDefault {
		return true
	}
	return a.OwnerID == userID
}
